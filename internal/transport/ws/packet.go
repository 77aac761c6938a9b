package ws

import (
	"bytes"
	"encoding/json"
	"errors"

	"mealswipe/internal/model"
	"mealswipe/internal/service"
)

var (
	errJSONSerializable     = errors.New("packet is not valid JSON")
	errActionNotFound       = errors.New("unknown or malformed action")
	errActionNotImplemented = errors.New("action has no inbound handler")
	errNoMessage            = errors.New("message is empty")
	errPanic                = errors.New("packet handler panicked")
)

// ConnectionCode is the outcome reported in a CONNECTION_CODE packet
type ConnectionCode struct {
	Name       string
	StatusCode int
	Message    string
}

var (
	CodeSuccessfulConnection    = ConnectionCode{"SuccessfulConnection", 200, "Successfully connected to the session"}
	CodeSuccessfulSwipe         = ConnectionCode{"SuccessfulSwipe", 201, "Swipe recorded"}
	CodeInvalidID               = ConnectionCode{"InvalidId", 400, "Invalid user or session id"}
	CodeInactiveSession         = ConnectionCode{"InactiveSession", 400, "Session is not in progress"}
	CodeJSONSerializable        = ConnectionCode{"JSONSerializable", 400, "Packet is not valid JSON"}
	CodeActionNotFound          = ConnectionCode{"ActionNotFound", 400, "Action not found"}
	CodeValidationException     = ConnectionCode{"ValidationException", 400, "Payload failed validation"}
	CodeNoMessage               = ConnectionCode{"NoMessage", 400, "Message must not be empty"}
	CodeStatusNotFound          = ConnectionCode{"StatusNotFound", 400, "Unknown session status"}
	CodeUnauthorized            = ConnectionCode{"Unauthorized", 401, "Not allowed to perform this action"}
	CodeRecipeNotFound          = ConnectionCode{"RecipeNotFound", 404, "Recipe not found"}
	CodeAlreadySwiped           = ConnectionCode{"AlreadySwiped", 409, "Recipe already swiped in this session"}
	CodeInvalidStatusTransition = ConnectionCode{"InvalidStatusTransition", 409, "Status transition not allowed"}
	CodeInternalError           = ConnectionCode{"InternalError", 500, "Internal server error"}
	CodeActionNotImplemented    = ConnectionCode{"ActionNotImplemented", 501, "Action not implemented"}
)

func (c ConnectionCode) payload(detail string) model.ConnectionCodePayload {
	return model.ConnectionCodePayload{
		StatusCode: c.StatusCode,
		Message:    c.Message,
		Detail:     detail,
	}
}

// codeFor is the single translation from a handler error to a wire code.
// The detail is only filled for validation failures.
func codeFor(err error) (ConnectionCode, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return CodeValidationException, verr.Detail
	case errors.Is(err, errJSONSerializable):
		return CodeJSONSerializable, ""
	case errors.Is(err, errActionNotFound):
		return CodeActionNotFound, ""
	case errors.Is(err, errActionNotImplemented):
		return CodeActionNotImplemented, ""
	case errors.Is(err, errNoMessage):
		return CodeNoMessage, ""
	case errors.Is(err, model.ErrStatusNotFound):
		return CodeStatusNotFound, ""
	case errors.Is(err, service.ErrUnauthorized):
		return CodeUnauthorized, ""
	case errors.Is(err, service.ErrRecipeNotFound):
		return CodeRecipeNotFound, ""
	case errors.Is(err, service.ErrAlreadySwiped):
		return CodeAlreadySwiped, ""
	case errors.Is(err, service.ErrInvalidTransition):
		return CodeInvalidStatusTransition, ""
	case errors.Is(err, service.ErrInactiveSession):
		return CodeInactiveSession, ""
	case errors.Is(err, service.ErrInvalidID),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrInvalidToken):
		return CodeInvalidID, ""
	default:
		return CodeInternalError, ""
	}
}

// envelope is a decoded inbound packet
type envelope struct {
	Action  model.Action
	Payload json.RawMessage
}

// decodeEnvelope classifies a raw frame. Malformed JSON is JSONSerializable;
// a well-formed frame without a string action and an object payload is
// ActionNotFound. A valid envelope naming an action outside the known set is
// ActionNotImplemented.
func decodeEnvelope(data []byte) (*envelope, error) {
	if !json.Valid(data) {
		return nil, errJSONSerializable
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errActionNotFound
	}

	var name string
	if err := json.Unmarshal(raw["action"], &name); err != nil {
		return nil, errActionNotFound
	}

	payload := bytes.TrimSpace(raw["payload"])
	if len(payload) == 0 || payload[0] != '{' {
		return nil, errActionNotFound
	}

	action, err := model.ParseAction(name)
	if err != nil {
		return nil, errActionNotImplemented
	}

	return &envelope{Action: action, Payload: payload}, nil
}

// decodePayload unmarshals a payload object into dst. Type mismatches are
// reported as validation failures.
func decodePayload(payload json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return service.NewValidationError(err)
	}
	return nil
}
