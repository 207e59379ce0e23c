package models

import "time"

// Voter is created once per person, regardless of how many elections they
// take part in. The face encoding blob is opaque to this backend; only the
// biometric verifier interprets it.
type Voter struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Enrollment   string    `gorm:"uniqueIndex;size:50" json:"enrollment"`
	Name         string    `gorm:"size:100" json:"name"`
	FaceEncoding []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Voter) TableName() string {
	return "voters"
}

// VoterElectionRegistration tracks one voter's registration in one election.
// At most one row may exist per (voter, election); duplicates are rejected
// before any ledger call so a voter can only ever commit one face hash per
// election.
type VoterElectionRegistration struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	VoterID    uint      `gorm:"index:idx_voter_election,unique" json:"voter_id"`
	ElectionID uint64    `gorm:"index:idx_voter_election,unique" json:"election_id"`
	Enrollment string    `gorm:"size:50" json:"enrollment"`
	FaceHash   string    `gorm:"size:66" json:"face_hash"`
	HasVoted   bool      `json:"has_voted"`
	CreatedAt  time.Time `json:"created_at"`
}

func (VoterElectionRegistration) TableName() string {
	return "voter_election_registrations"
}
