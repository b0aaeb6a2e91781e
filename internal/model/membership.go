package model

// MembershipStatus is the closed tri-state result of the channel
// membership check. Indeterminate is a real outcome, not an absence of
// one: the gate must report it instead of treating it as a denial.
type MembershipStatus int

const (
	MembershipIndeterminate MembershipStatus = iota
	MembershipMember
	MembershipNotMember
)

func (s MembershipStatus) String() string {
	switch s {
	case MembershipMember:
		return "member"
	case MembershipNotMember:
		return "not_member"
	default:
		return "indeterminate"
	}
}

// Membership carries the status plus, for the indeterminate case, the
// reason the check could not be completed.
type Membership struct {
	Status MembershipStatus
	Reason string
}
