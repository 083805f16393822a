package model

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCodeActive Phase = "code_active"
	PhasePaired     Phase = "paired"
)

type RecordKind string

const (
	RecordKindCode         RecordKind = "code"
	RecordKindRelationship RecordKind = "relationship"
)
