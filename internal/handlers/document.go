package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/services/printer"
	"github.com/gorilla/mux"
)

func str(data map[string]interface{}, key string) string {
	if v, ok := data[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func num(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func date(data map[string]interface{}, key string) time.Time {
	s := str(data, key)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// invoicePDF renders one invoice as a PDF document. Invoicing is available
// in every post-setup state, so the collection gate applies here too.
func (r *Router) invoicePDF(w http.ResponseWriter, req *http.Request) {
	store, ok := r.stores["invoices"]
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown collection")
		return
	}

	record, err := store.GetByID(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "Invoice not found")
		return
	}

	data := record.Data
	doc := printer.InvoiceDocument{
		Number:      str(data, "number"),
		IssuedAt:    date(data, "issuedAt"),
		DueAt:       date(data, "dueAt"),
		CompanyName: r.coordinator.Setup().CompanyName,
		ClientName:  str(data, "clientName"),
		ClientEmail: str(data, "clientEmail"),
		Subtotal:    num(data, "subtotal"),
		TaxRate:     num(data, "taxRate"),
		TaxAmount:   num(data, "taxAmount"),
		Total:       num(data, "total"),
		PaymentLink: str(data, "paymentLink"),
		Notes:       str(data, "notes"),
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = record.CreatedAt
	}
	if doc.Number == "" {
		doc.Number = record.ID
	}

	// The client name may live on the referenced client record instead of
	// being denormalized onto the invoice.
	if doc.ClientName == "" {
		if clientID := str(data, "clientId"); clientID != "" {
			if clients, ok := r.stores["clients"]; ok {
				if client, err := clients.GetByID(req.Context(), clientID); err == nil && client != nil {
					doc.ClientName = str(client.Data, "name")
					doc.ClientEmail = str(client.Data, "email")
				}
			}
		}
	}

	if items, ok := data["lineItems"].([]interface{}); ok {
		for _, raw := range items {
			if item, ok := raw.(map[string]interface{}); ok {
				doc.LineItems = append(doc.LineItems, item)
			}
		}
	}

	pdfBytes, err := printer.GenerateInvoicePDF(doc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="invoice-%s.pdf"`, doc.Number))
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}
