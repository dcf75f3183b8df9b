package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spindex/spindex/internal/submission"
)

// Interaction types as they appear on the wire.
const (
	InteractionPing      = 1
	InteractionCommand   = 2
	InteractionComponent = 3
)

// Response types the gateway writes back in the callback body.
const (
	ResponsePong          = 1
	ResponseMessage       = 4
	ResponseUpdateMessage = 7
)

// FlagEphemeral marks a response message as visible only to the invoking
// user.
const FlagEphemeral = 1 << 6

// ErrUnknownInteraction is returned when a callback parses as JSON but
// does not match any interaction shape the gateway handles.
var ErrUnknownInteraction = errors.New("unknown interaction")

// Interaction is the inbound callback payload. Only the fields the
// gateway acts on are decoded.
type Interaction struct {
	Type    int              `json:"type"`
	ID      string           `json:"id"`
	Token   string           `json:"token"`
	GuildID string           `json:"guild_id"`
	Data    *InteractionData `json:"data"`
	Member  *Member          `json:"member"`
}

// InteractionData carries the command- or component-specific portion of
// an interaction.
type InteractionData struct {
	Name          string          `json:"name"`
	Options       []CommandOption `json:"options"`
	CustomID      string          `json:"custom_id"`
	ComponentType int             `json:"component_type"`
}

// CommandOption is a single named argument of a slash command.
type CommandOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Member identifies the guild member who triggered the interaction,
// together with the role set used for authorization.
type Member struct {
	User  User     `json:"user"`
	Roles []string `json:"roles"`
}

// User is the platform account behind a member.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Option returns the string value of the named command option, or "" if
// the option is absent.
func (d *InteractionData) Option(name string) string {
	for _, opt := range d.Options {
		if opt.Name == name {
			return opt.Value
		}
	}

	return ""
}

// Response is the synchronous reply written back to an interaction
// callback.
type Response struct {
	Type int           `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// ResponseData is the message portion of an interaction response.
type ResponseData struct {
	Content    string `json:"content,omitempty"`
	Flags      int    `json:"flags,omitempty"`
	Components []any  `json:"components"`
}

// Pong acknowledges a ping interaction.
func Pong() *Response {
	return &Response{Type: ResponsePong}
}

// EphemeralMessage builds a reply only the invoking user can see.
func EphemeralMessage(content string) *Response {
	return &Response{
		Type: ResponseMessage,
		Data: &ResponseData{
			Content: content,
			Flags:   FlagEphemeral,
		},
	}
}

// UpdateMessage replaces the content of the message the component was
// attached to, stripping its buttons.
func UpdateMessage(content string) *Response {
	return &Response{
		Type: ResponseUpdateMessage,
		Data: &ResponseData{
			Content:    content,
			Components: []any{},
		},
	}
}

// Moderation verbs encoded in component custom ids.
const (
	VerbApprove = "approve"
	VerbReject  = "reject"
)

// ActionToken is the decoded form of a component custom id. Tokens are
// encoded as "{verb}_{submissionType}_{submissionID}". Submission types
// may themselves contain underscores; submission ids are UUIDs and never
// do, so the verb is the first segment, the id is the last, and the type
// is everything in between.
type ActionToken struct {
	Verb         string
	Type         submission.Type
	SubmissionID string
}

// String encodes the token back to its wire form.
func (t ActionToken) String() string {
	return t.Verb + "_" + string(t.Type) + "_" + t.SubmissionID
}

// ParseActionToken decodes a component custom id. It rejects tokens with
// unknown verbs or submission types rather than guessing.
func ParseActionToken(customID string) (ActionToken, error) {
	parts := strings.Split(customID, "_")
	if len(parts) < 3 {
		return ActionToken{}, fmt.Errorf("%w: custom id %q",
			ErrUnknownInteraction, customID)
	}

	verb := parts[0]
	if verb != VerbApprove && verb != VerbReject {
		return ActionToken{}, fmt.Errorf("%w: verb %q",
			ErrUnknownInteraction, verb)
	}

	subType, err := submission.ParseType(
		strings.Join(parts[1:len(parts)-1], "_"),
	)
	if err != nil {
		return ActionToken{}, fmt.Errorf("%w: %v",
			ErrUnknownInteraction, err)
	}

	id := parts[len(parts)-1]
	if id == "" {
		return ActionToken{}, fmt.Errorf("%w: empty submission id",
			ErrUnknownInteraction)
	}

	return ActionToken{
		Verb:         verb,
		Type:         subType,
		SubmissionID: id,
	}, nil
}
