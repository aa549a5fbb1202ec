package generator

import (
	"github.com/google/uuid"
)

type StringGenerator struct {
}

// GenerateUuid returns a random (version 4) uuid in its canonical lower case form.
func (n *StringGenerator) GenerateUuid() string {
	return uuid.NewString()
}
