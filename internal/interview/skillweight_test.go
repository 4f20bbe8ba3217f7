package interview

import (
	"math"
	"testing"
)

func TestComputeSkillWeights_Formula(t *testing.T) {
	resume := ResumeData{Skills: []Skill{
		{Name: "Python", Years: 2.5, Projects: 3},
	}}
	weights := ComputeSkillWeights(RoleBackendDeveloper, resume)
	if len(weights) != 1 {
		t.Fatalf("got %d weights, want 1", len(weights))
	}
	w := weights[0]
	// relevance 0.9, experience 2.5/5, projects 3/5
	want := 0.5*0.9 + 0.3*0.5 + 0.2*0.6
	if math.Abs(w.Weight-want) > 1e-9 {
		t.Errorf("weight = %v, want %v", w.Weight, want)
	}
	if w.RoleRelevance != 0.9 {
		t.Errorf("role relevance = %v, want 0.9", w.RoleRelevance)
	}
}

func TestComputeSkillWeights_UnknownSkillGetsDefault(t *testing.T) {
	resume := ResumeData{Skills: []Skill{
		{Name: "COBOL", Years: 0, Projects: 0},
	}}
	weights := ComputeSkillWeights(RoleBackendDeveloper, resume)
	if got := weights[0].RoleRelevance; got != defaultRelevance {
		t.Errorf("relevance = %v, want %v", got, defaultRelevance)
	}
}

func TestComputeSkillWeights_ExperienceSaturatesAtFiveYears(t *testing.T) {
	resume := ResumeData{Skills: []Skill{
		{Name: "Go", Years: 5},
	}}
	w := ComputeSkillWeights(RoleBackendDeveloper, resume)[0]
	if w.ResumeExperience != 1 {
		t.Errorf("experience = %v, want 1 at five years", w.ResumeExperience)
	}
}

func TestComputeSkillWeights_UnmappedRelevanceValue(t *testing.T) {
	resume := ResumeData{Skills: []Skill{
		{Name: "Fortran", Years: 3, Projects: 1},
	}}
	w := ComputeSkillWeights(RoleFrontendDeveloper, resume)[0]
	if w.RoleRelevance != 0.1 {
		t.Errorf("relevance = %v, want 0.1 for unmapped skill", w.RoleRelevance)
	}
}

func TestComputeSkillWeights_SignalsCapAtOne(t *testing.T) {
	resume := ResumeData{Skills: []Skill{
		{Name: "Python", Years: 25, Projects: 40},
	}}
	w := ComputeSkillWeights(RoleDataScientist, resume)[0]
	if w.ResumeExperience != 1 {
		t.Errorf("experience = %v, want 1", w.ResumeExperience)
	}
	if w.ProjectCount != 1 {
		t.Errorf("projects = %v, want 1", w.ProjectCount)
	}
}

func TestComputeSkillWeights_SortedDescending(t *testing.T) {
	resume := ResumeData{Skills: []Skill{
		{Name: "Git", Years: 1, Projects: 1},
		{Name: "Kubernetes", Years: 6, Projects: 4},
		{Name: "Docker", Years: 4, Projects: 3},
	}}
	weights := ComputeSkillWeights(RoleDevOpsEngineer, resume)
	for i := 1; i < len(weights); i++ {
		if weights[i].Weight > weights[i-1].Weight {
			t.Fatalf("weights not sorted: %v before %v", weights[i-1], weights[i])
		}
	}
	if weights[0].Skill != "Kubernetes" {
		t.Errorf("top skill = %q, want Kubernetes", weights[0].Skill)
	}
}

func TestTopSkills(t *testing.T) {
	weights := []SkillWeight{
		{Skill: "A", Weight: 0.9},
		{Skill: "B", Weight: 0.8},
		{Skill: "C", Weight: 0.7},
	}
	got := TopSkills(weights, 2)
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("TopSkills = %v", got)
	}
	if got := TopSkills(weights, 10); len(got) != 3 {
		t.Errorf("TopSkills over-length = %v", got)
	}
}
