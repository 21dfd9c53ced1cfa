package domain

import (
	"sort"

	"github.com/samber/lo"
)

type Role int

const (
	RoleMember Role = iota
	RoleDoctor
	RolePatient
)

func (r Role) String() string {
	switch r {
	case RoleDoctor:
		return "DOCTOR"
	case RolePatient:
		return "PATIENT"
	default:
		return "MEMBER"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

type Participant struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// CommunityParticipants builds the participant set of a community.
// A user listed both as doctor and patient is kept once, as a doctor.
func CommunityParticipants(doctorIDs, patientIDs []string) []Participant {
	doctors := lo.Uniq(lo.Compact(doctorIDs))
	patients := lo.Without(lo.Uniq(lo.Compact(patientIDs)), doctors...)
	participants := make([]Participant, 0, len(doctors)+len(patients))
	for _, id := range doctors {
		participants = append(participants, Participant{UserID: id, Role: RoleDoctor})
	}
	for _, id := range patients {
		participants = append(participants, Participant{UserID: id, Role: RolePatient})
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].UserID < participants[j].UserID
	})
	return participants
}

// PrivateParticipants returns the sorted pair of a private conversation.
func PrivateParticipants(a, b string) []Participant {
	if b < a {
		a, b = b, a
	}
	return []Participant{{UserID: a, Role: RoleMember}, {UserID: b, Role: RoleMember}}
}
