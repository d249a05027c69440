package ai

import "fmt"

// Draft kinds exposed through the drafting endpoint.
const (
	DraftInvoiceReminder     = "invoice_reminder"
	DraftAppointmentConfirm  = "appointment_confirmation"
	DraftProjectStatusUpdate = "project_status_update"
)

const draftSystemPrompt = `You write short, friendly, professional messages on behalf of a small service business owner.
Rules:
- Plain text only, no markdown, no subject line unless asked.
- Two to four sentences.
- Never invent amounts, dates, or names that are not provided.
- Sign off with the business name when given.`

var draftTemplates = map[string]string{
	DraftInvoiceReminder: `Write a polite payment reminder for invoice %[1]v.
Client: %[2]v
Amount due: %[3]v
Due date: %[4]v
Business: %[5]v`,

	DraftAppointmentConfirm: `Write an appointment confirmation message.
Client: %[2]v
Service: %[1]v
Scheduled for: %[4]v
Business: %[5]v`,

	DraftProjectStatusUpdate: `Write a brief project status update for a client.
Project: %[1]v
Client: %[2]v
Current status: %[3]v
Business: %[5]v`,
}

// BuildDraftPrompt assembles the full prompt for one draft kind. Missing
// fields render as empty strings and the model is told not to invent them.
func BuildDraftPrompt(kind string, fields map[string]interface{}) (string, error) {
	tmpl, ok := draftTemplates[kind]
	if !ok {
		return "", fmt.Errorf("unknown draft kind %q", kind)
	}

	get := func(key string) interface{} {
		if v, ok := fields[key]; ok && v != nil {
			return v
		}
		return ""
	}

	body := fmt.Sprintf(tmpl,
		get("subject"),
		get("clientName"),
		get("amount"),
		get("date"),
		get("businessName"),
	)
	return draftSystemPrompt + "\n\n" + body, nil
}
