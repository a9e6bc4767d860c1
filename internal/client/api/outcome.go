package api

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"secondhand/internal/domain"
)

// Outcome is the decoded envelope of a response: exactly one of Success[T]
// or Failure. Resolve it with a type switch.
type Outcome[T any] interface {
	outcome()
}

type Success[T any] struct {
	Data T
}

// Failure is an envelope the server marked as unsuccessful, or one that
// could not be decoded (Code -1).
type Failure struct {
	Code    int
	Message string
}

func (Success[T]) outcome() {}
func (Failure) outcome()    {}

const undecodable = -1

// Decide turns a raw body into an Outcome. Codes 0 and 200 are success.
func Decide[T any](body []byte) Outcome[T] {
	if !gjson.ValidBytes(body) || !gjson.GetBytes(body, "code").Exists() {
		return Failure{Code: undecodable, Message: serverMessage(body)}
	}
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Failure{Code: undecodable, Message: serverMessage(body)}
	}
	if env.Code != domain.CodeOK && env.Code != domain.CodeSuccess {
		return Failure{Code: env.Code, Message: env.Message}
	}
	var data T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Failure{Code: undecodable}
		}
	}
	return Success[T]{Data: data}
}

// serverMessage pulls "message" out of a body that may not be an envelope at all.
func serverMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	m := gjson.GetBytes(body, "message")
	if m.Type != gjson.String {
		return ""
	}
	return m.String()
}
