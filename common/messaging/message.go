package messaging

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	UserDeleted  = "user.deleted"
	ChildDeleted = "child.deleted"

	TypeAttribute = "type"
)

type Message struct {
	ID          string
	Data        []byte
	Attributes  map[string]string
	PublishTime time.Time
}

// NewLifecycleMessage builds the notification sent once a lifecycle change
// has been committed. payload is sent as json.
func NewLifecycleMessage(kind string, payload interface{}) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, errors.Wrapf(err, "failed to encode %s payload", kind)
	}
	return Message{
		Data: data,
		Attributes: map[string]string{
			TypeAttribute: kind,
		},
		PublishTime: time.Now().UTC(),
	}, nil
}

func (m Message) Type() string {
	return m.Attributes[TypeAttribute]
}
