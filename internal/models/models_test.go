package models

import (
	"math"
	"testing"
	"time"
)

func TestCanBeAssigned(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{TicketOpen, true},
		{TicketOnHold, true},
		{TicketAssigned, false},
		{TicketInProgress, false},
		{TicketCompleted, false},
		{TicketCancelled, false},
	}
	for _, tc := range cases {
		ticket := Ticket{Status: tc.status}
		if got := ticket.CanBeAssigned(); got != tc.want {
			t.Fatalf("status %s: got %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestRequiredSkillsFallsBackToCategory(t *testing.T) {
	ticket := Ticket{Category: "plumbing"}
	got := ticket.RequiredSkills()
	if len(got) != 1 || got[0] != "plumbing" {
		t.Fatalf("expected category fallback, got %v", got)
	}

	ticket.SkillsRequired = []string{"hvac", "electrical"}
	got = ticket.RequiredSkills()
	if len(got) != 2 || got[0] != "hvac" {
		t.Fatalf("expected explicit skills, got %v", got)
	}
}

func TestUrgencyScore(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	fresh := Ticket{Priority: PriorityEmergency, CreatedAt: now}
	if got := fresh.UrgencyScore(now); got != 10 {
		t.Fatalf("fresh emergency should score 10, got %f", got)
	}

	aged := Ticket{Priority: PriorityLow, CreatedAt: now.Add(-48 * time.Hour)}
	if got := aged.UrgencyScore(now); math.Abs(got-4) > 1e-9 {
		t.Fatalf("2-day-old low ticket should score 4, got %f", got)
	}

	ancient := Ticket{Priority: PriorityMedium, CreatedAt: now.Add(-30 * 24 * time.Hour)}
	if got := ancient.UrgencyScore(now); got != 9 {
		t.Fatalf("age bonus must cap at 5 points, got %f", got)
	}
}

func TestHasSkill(t *testing.T) {
	team := FieldTeam{Skills: []string{"electrical", "hvac"}}
	if !team.HasSkill("hvac") {
		t.Fatal("expected hvac to match")
	}
	if team.HasSkill("plumbing") {
		t.Fatal("plumbing should not match")
	}
	if team.HasSkill("Electrical") {
		t.Fatal("skill comparison is case sensitive")
	}
}

func TestAssignmentIsActive(t *testing.T) {
	active := []string{AssignmentAssigned, AssignmentAccepted, AssignmentInProgress}
	for _, s := range active {
		if !(Assignment{Status: s}).IsActive() {
			t.Fatalf("status %s should be active", s)
		}
	}
	done := []string{AssignmentRejected, AssignmentCompleted, AssignmentCancelled}
	for _, s := range done {
		if (Assignment{Status: s}).IsActive() {
			t.Fatalf("status %s should not be active", s)
		}
	}
}

func TestAssignmentEfficiency(t *testing.T) {
	minutes := 60
	a := Assignment{Performance: Performance{CompletionTime: &minutes}}

	e := a.Efficiency(90)
	if e == nil || math.Abs(*e-1.5) > 1e-9 {
		t.Fatalf("90 estimated over 60 actual should be 1.5, got %v", e)
	}

	if a.Efficiency(0) != nil {
		t.Fatal("zero estimate should yield nil")
	}

	zero := 0
	a.Performance.CompletionTime = &zero
	if a.Efficiency(90) != nil {
		t.Fatal("zero completion time should yield nil")
	}

	a.Performance.CompletionTime = nil
	if a.Efficiency(90) != nil {
		t.Fatal("missing completion time should yield nil")
	}
}
