// Package tool declares the agent's tool surface: the catalog advertised to
// the dialogue model and the helpers for pulling typed arguments out of a
// tool call's raw argument map.
package tool

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Tool names. The dialogue model selects tools by these names; the
// orchestrator dispatches on them.
const (
	IdentifyUser      = "identify_user"
	CreateUser        = "create_user"
	GetAvailability   = "get_availability"
	BookAppointment   = "book_appointment"
	CancelAppointment = "cancel_appointment"
	ModifyAppointment = "modify_appointment"
	GetAppointments   = "get_appointments"
	EndConversation   = "end_conversation"
)

// Catalog returns the tool definitions advertised to the dialogue model.
// Date and time parameters are free-form phrases; resolution happens inside
// the orchestrator, not in the model.
func Catalog() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: IdentifyUser,
			Desc: "Look up a user by their 10-digit phone number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_number": {Type: schema.String, Desc: "10-digit phone number", Required: true},
			}),
		},
		{
			Name: CreateUser,
			Desc: "Create a new user account with a phone number and name.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_number": {Type: schema.String, Desc: "10-digit phone number", Required: true},
				"name":         {Type: schema.String, Desc: "Caller's name", Required: true},
			}),
		},
		{
			Name: GetAvailability,
			Desc: "Check open appointment slots. Without a date, surveys the coming week.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date": {Type: schema.String, Desc: "Date phrase such as 'tomorrow' or 'next Tuesday'"},
			}),
		},
		{
			Name: BookAppointment,
			Desc: "Book an appointment for the identified caller.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_number": {Type: schema.String, Desc: "Caller's phone number", Required: true},
				"date":         {Type: schema.String, Desc: "Date phrase", Required: true},
				"time":         {Type: schema.String, Desc: "Time phrase such as '2pm'", Required: true},
				"notes":        {Type: schema.String, Desc: "Optional notes for the appointment"},
			}),
		},
		{
			Name: CancelAppointment,
			Desc: "Cancel an upcoming appointment. Date and time narrow the match.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_number": {Type: schema.String, Desc: "Caller's phone number", Required: true},
				"date":         {Type: schema.String, Desc: "Date phrase of the appointment to cancel"},
				"time":         {Type: schema.String, Desc: "Time phrase of the appointment to cancel"},
			}),
		},
		{
			Name: ModifyAppointment,
			Desc: "Move an upcoming appointment to a new date and time.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_number": {Type: schema.String, Desc: "Caller's phone number", Required: true},
				"date":         {Type: schema.String, Desc: "Date phrase of the appointment to move"},
				"time":         {Type: schema.String, Desc: "Time phrase of the appointment to move"},
				"new_date":     {Type: schema.String, Desc: "New date phrase", Required: true},
				"new_time":     {Type: schema.String, Desc: "New time phrase", Required: true},
			}),
		},
		{
			Name: GetAppointments,
			Desc: "List the caller's upcoming appointments.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_number": {Type: schema.String, Desc: "Caller's phone number", Required: true},
			}),
		},
		{
			Name: EndConversation,
			Desc: "End the call and generate the call summary.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {Type: schema.String, Desc: "Current session id"},
			}),
		},
	}
}

// Known reports whether name is in the catalog.
func Known(name string) bool {
	switch name {
	case IdentifyUser, CreateUser, GetAvailability, BookAppointment,
		CancelAppointment, ModifyAppointment, GetAppointments, EndConversation:
		return true
	}
	return false
}

// StringArg extracts a required string argument, trimmed.
func StringArg(args map[string]any, key string) (string, error) {
	v, err := OptionalArg(args, key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("missing argument %q", key)
	}
	return v, nil
}

// OptionalArg extracts an optional string argument, trimmed. Absent keys and
// nil values yield "".
func OptionalArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q: expected string, got %T", key, raw)
	}
	return strings.TrimSpace(s), nil
}
