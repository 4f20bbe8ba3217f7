package interview

import (
	"sort"
	"strings"
)

// roleSkillRelevance maps each role to per-skill relevance in [0,1]. Skills
// absent from a role's map fall back to defaultRelevance.
var roleSkillRelevance = map[Role]map[string]float64{
	RoleBackendDeveloper: {
		"python": 0.9, "java": 0.9, "go": 0.9, "node.js": 0.85,
		"sql": 0.85, "postgresql": 0.8, "mysql": 0.75, "mongodb": 0.7,
		"redis": 0.7, "docker": 0.75, "kubernetes": 0.7, "rest api": 0.85,
		"graphql": 0.7, "microservices": 0.8, "system design": 0.85,
		"aws": 0.7, "git": 0.6, "linux": 0.65,
	},
	RoleFrontendDeveloper: {
		"javascript": 0.95, "typescript": 0.9, "react": 0.9, "vue": 0.85,
		"angular": 0.85, "html": 0.8, "css": 0.8, "next.js": 0.8,
		"redux": 0.7, "webpack": 0.6, "rest api": 0.7, "graphql": 0.65,
		"testing": 0.7, "git": 0.6,
	},
	RoleFullstackDeveloper: {
		"javascript": 0.9, "typescript": 0.85, "react": 0.8, "node.js": 0.85,
		"python": 0.8, "sql": 0.8, "mongodb": 0.7, "docker": 0.7,
		"rest api": 0.85, "system design": 0.75, "git": 0.65, "aws": 0.65,
	},
	RoleDataScientist: {
		"python": 0.95, "machine learning": 0.95, "deep learning": 0.85,
		"pandas": 0.85, "numpy": 0.8, "sql": 0.8, "statistics": 0.9,
		"tensorflow": 0.75, "pytorch": 0.8, "scikit-learn": 0.8,
		"data visualization": 0.7, "nlp": 0.7, "spark": 0.6,
	},
	RoleSoftwareEngineer: {
		"data structures": 0.9, "algorithms": 0.9, "python": 0.8,
		"java": 0.8, "c++": 0.8, "go": 0.75, "system design": 0.85,
		"sql": 0.7, "git": 0.65, "testing": 0.7, "docker": 0.6,
	},
	RoleDevOpsEngineer: {
		"kubernetes": 0.95, "docker": 0.9, "aws": 0.9, "terraform": 0.85,
		"ci/cd": 0.9, "linux": 0.85, "python": 0.7, "bash": 0.75,
		"monitoring": 0.8, "ansible": 0.7, "gcp": 0.7, "azure": 0.7,
	},
	RoleProductManager: {
		"product strategy": 0.9, "analytics": 0.8, "sql": 0.6,
		"agile": 0.8, "roadmapping": 0.85, "user research": 0.8,
		"a/b testing": 0.7, "stakeholder management": 0.85,
	},
}

const (
	// defaultRelevance applies to skills the role map does not mention.
	// Deliberately low: an unmapped skill should not outrank a mapped one.
	defaultRelevance = 0.1

	// Normalisation ceilings for the resume signals. Five years of hands-on
	// use saturates the experience signal.
	maxExperienceYears = 5.0
	maxProjectCount    = 5.0

	// Combination weights. Must sum to 1.
	roleWeight       = 0.5
	experienceWeight = 0.3
	projectWeight    = 0.2
)

// ComputeSkillWeights scores every resume skill against the target role and
// returns the list sorted by descending weight. Ties break alphabetically so
// the ordering is deterministic.
func ComputeSkillWeights(role Role, resume ResumeData) []SkillWeight {
	relevance := roleSkillRelevance[role]

	weights := make([]SkillWeight, 0, len(resume.Skills))
	for _, skill := range resume.Skills {
		rel := defaultRelevance
		if r, ok := relevance[strings.ToLower(skill.Name)]; ok {
			rel = r
		}

		exp := skill.Years / maxExperienceYears
		if exp > 1 {
			exp = 1
		}
		proj := float64(skill.Projects) / maxProjectCount
		if proj > 1 {
			proj = 1
		}

		weights = append(weights, SkillWeight{
			Skill:            skill.Name,
			Weight:           roleWeight*rel + experienceWeight*exp + projectWeight*proj,
			RoleRelevance:    rel,
			ResumeExperience: exp,
			ProjectCount:     proj,
		})
	}

	sort.Slice(weights, func(i, j int) bool {
		if weights[i].Weight != weights[j].Weight {
			return weights[i].Weight > weights[j].Weight
		}
		return weights[i].Skill < weights[j].Skill
	})
	return weights
}

// TopSkills returns the names of the n highest-weighted skills.
func TopSkills(weights []SkillWeight, n int) []string {
	if n > len(weights) {
		n = len(weights)
	}
	names := make([]string, 0, n)
	for _, w := range weights[:n] {
		names = append(names, w.Skill)
	}
	return names
}
