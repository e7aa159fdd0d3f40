package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GetContact fetches the full contact record, custom fields included.
func (c *Client) GetContact(ctx context.Context, token, contactID string) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet,
		"/contacts/"+url.PathEscape(contactID),
		token, VersionContacts, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("fetching contact: %w", err)
	}
	return out, nil
}

// GetCustomFields lists the custom field definitions of a location. model
// is "contact" or "opportunity"; empty defaults to contact.
func (c *Client) GetCustomFields(ctx context.Context, token, locationID, model string) (map[string]any, error) {
	if model == "" {
		model = "contact"
	}
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet,
		"/locations/"+url.PathEscape(locationID)+"/customFields?model="+url.QueryEscape(model),
		token, VersionContacts, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("fetching custom fields: %w", err)
	}
	return out, nil
}

// CustomFieldUpdate sets one custom field by definition id.
type CustomFieldUpdate struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// ContactUpdates are the basic and custom fields ManageContact can change.
type ContactUpdates struct {
	FirstName    string
	LastName     string
	Name         string
	Email        string
	Phone        string
	BusinessName string
	CompanyName  string
	Company      string
	CustomFields []CustomFieldUpdate
}

func (u ContactUpdates) body() map[string]any {
	out := map[string]any{}
	set := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}
	set("firstName", u.FirstName)
	set("lastName", u.LastName)
	set("name", u.Name)
	set("email", u.Email)
	set("phone", u.Phone)
	set("businessName", u.BusinessName)
	set("companyName", u.CompanyName)
	set("company", u.Company)
	if len(u.CustomFields) > 0 {
		out["customFields"] = u.CustomFields
	}
	return out
}

// ManageContactRequest bundles every contact mutation into one composite
// call: field updates, tag changes, notes, and workflow enrollment.
type ManageContactRequest struct {
	ContactID  string
	Updates    *ContactUpdates
	Tags       []string
	RemoveTags []string
	Notes      []string
	WorkflowID string
}

// ManageContact applies a composite mutation, one CRM call per requested
// part, and returns the per-part results keyed the way the CRM names them.
func (c *Client) ManageContact(ctx context.Context, token string, req ManageContactRequest) (map[string]any, error) {
	if req.ContactID == "" {
		return nil, fmt.Errorf("contactId is required")
	}
	base := "/contacts/" + url.PathEscape(req.ContactID)
	results := map[string]any{}

	if req.Updates != nil {
		var out map[string]any
		err := c.doJSON(ctx, http.MethodPut, base, token, VersionContacts, req.Updates.body(), &out)
		if err != nil {
			return results, fmt.Errorf("updating contact: %w", err)
		}
		results["updateContact"] = out
	}
	if len(req.Tags) > 0 {
		var out map[string]any
		err := c.doJSON(ctx, http.MethodPost, base+"/tags", token, VersionContacts,
			map[string]any{"tags": req.Tags}, &out)
		if err != nil {
			return results, fmt.Errorf("adding tags: %w", err)
		}
		results["addTags"] = out
	}
	if len(req.RemoveTags) > 0 {
		var out map[string]any
		err := c.doJSON(ctx, http.MethodDelete, base+"/tags", token, VersionContacts,
			map[string]any{"tags": req.RemoveTags}, &out)
		if err != nil {
			return results, fmt.Errorf("removing tags: %w", err)
		}
		results["removeTags"] = out
	}
	if len(req.Notes) > 0 {
		var notes []any
		for _, note := range req.Notes {
			var out map[string]any
			err := c.doJSON(ctx, http.MethodPost, base+"/notes", token, VersionContacts,
				map[string]any{"body": note}, &out)
			if err != nil {
				return results, fmt.Errorf("adding note: %w", err)
			}
			notes = append(notes, out)
		}
		results["notes"] = notes
	}
	if req.WorkflowID != "" {
		var out map[string]any
		err := c.doJSON(ctx, http.MethodPost, base+"/workflow/"+url.PathEscape(req.WorkflowID),
			token, VersionContacts, nil, &out)
		if err != nil {
			return results, fmt.Errorf("enrolling in workflow: %w", err)
		}
		results["workflow"] = out
	}
	return results, nil
}

// Address is a contact's registered address, normalized from the payload
// field variants.
type Address struct {
	Street     string
	Address2   string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Empty reports whether no address field is filled.
func (a Address) Empty() bool {
	return a.Street == "" && a.Address2 == "" && a.City == "" &&
		a.State == "" && a.PostalCode == "" && a.Country == ""
}

// contactRecord unwraps the payload shapes GetContact can return: the
// record itself, or nested under "contact" or "data".
func contactRecord(payload map[string]any) map[string]any {
	for _, key := range []string{"contact", "data"} {
		if nested, ok := payload[key].(map[string]any); ok {
			return nested
		}
	}
	return payload
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := record[key].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// ExtractCompanyName pulls the registered company from a contact payload,
// trying the known field spellings in order.
func ExtractCompanyName(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	return firstString(contactRecord(payload),
		"companyName", "businessName", "company", "business_name", "company_name")
}

// ExtractAddress pulls the registered address from a contact payload.
func ExtractAddress(payload map[string]any) Address {
	if payload == nil {
		return Address{}
	}
	c := contactRecord(payload)
	return Address{
		Street:     firstString(c, "street", "address1", "address_1", "address"),
		Address2:   firstString(c, "address2", "address_2"),
		City:       firstString(c, "city"),
		State:      firstString(c, "state"),
		PostalCode: firstString(c, "postalCode", "postal_code", "zip"),
		Country:    firstString(c, "country"),
	}
}
