package domain

// Identity is the opaque, stable token of one anonymous voter.
type Identity string

type Vote struct {
	Identity Identity `json:"-"`
	Option   Option   `json:"option"`
}
