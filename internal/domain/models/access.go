package models

// AccessType labels the relationship that produced a resolved access.
// Richer labels win: owner > admin > member > guest.
type AccessType string

const (
	AccessTypeOwner  AccessType = "owner"
	AccessTypeAdmin  AccessType = "admin"
	AccessTypeMember AccessType = "member"
	AccessTypeGuest  AccessType = "guest"
)

// Access is the effective access of one user on one entity. Absence of
// access is all-zero flags, never an error.
type Access struct {
	Read    bool       `json:"read"`
	Write   bool       `json:"write"`
	Comment bool       `json:"comment"`
	Share   bool       `json:"share"`
	Type    AccessType `json:"access_type"`
}

// FullAccess returns owner-grade access with every flag set.
func FullAccess(t AccessType) Access {
	return Access{Read: true, Write: true, Comment: true, Share: true, Type: t}
}

// Merge ORs in the flags another layer resolved to. Flags only ever
// accumulate during resolution; nothing un-sets a flag.
func (a *Access) Merge(other Access) {
	a.Read = a.Read || other.Read
	a.Write = a.Write || other.Write
	a.Comment = a.Comment || other.Comment
	a.Share = a.Share || other.Share
}
