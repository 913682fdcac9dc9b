package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/reconciler/internal/domain/integration"
)

// flexID accepts Bling identifiers encoded as JSON numbers or strings
type flexID string

// UnmarshalJSON implements json.Unmarshaler
func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("bling: id is neither string nor number: %s", data)
	}
	*f = flexID(n.String())
	return nil
}

// present returns false for empty and zero identifiers
func (f flexID) present() bool {
	return f != "" && f != "0"
}

// blingStatus accepts situacao as a number, a numeric string or an object
// carrying id or valor.
type blingStatus int

// UnmarshalJSON implements json.Unmarshaler
func (s *blingStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			ID    *flexID `json:"id"`
			Valor *flexID `json:"valor"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		switch {
		case obj.ID != nil && obj.ID.present():
			return s.set(*obj.ID)
		case obj.Valor != nil && obj.Valor.present():
			return s.set(*obj.Valor)
		}
		*s = 0
		return nil
	}
	var id flexID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	return s.set(id)
}

func (s *blingStatus) set(id flexID) error {
	if id == "" {
		*s = 0
		return nil
	}
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return fmt.Errorf("bling: invalid situacao %q", string(id))
	}
	*s = blingStatus(n)
	return nil
}

// blingRef is any nested object identified only by id
type blingRef struct {
	ID flexID `json:"id"`
}

// BlingOrderResponse is the GET /pedidos/vendas/{id} envelope
type BlingOrderResponse struct {
	Data struct {
		ID           flexID     `json:"id"`
		Numero       flexID     `json:"numero"`
		NotaFiscal   *blingRef  `json:"notaFiscal"`
		NFe          *blingRef  `json:"nfe"`
		NotasFiscais []blingRef `json:"notasFiscais"`
	} `json:"data"`
}

// InvoiceID resolves the fiscal invoice reference in fallback order:
// notaFiscal.id, nfe.id, notasFiscais[0].id.
func (r *BlingOrderResponse) InvoiceID() string {
	d := r.Data
	if d.NotaFiscal != nil && d.NotaFiscal.ID.present() {
		return string(d.NotaFiscal.ID)
	}
	if d.NFe != nil && d.NFe.ID.present() {
		return string(d.NFe.ID)
	}
	if len(d.NotasFiscais) > 0 && d.NotasFiscais[0].ID.present() {
		return string(d.NotasFiscais[0].ID)
	}
	return ""
}

// ToOrder converts the response to the gateway value object
func (r *BlingOrderResponse) ToOrder() *integration.ERPOrder {
	return &integration.ERPOrder{
		ID:        string(r.Data.ID),
		Number:    string(r.Data.Numero),
		InvoiceID: r.InvoiceID(),
	}
}

// BlingInvoiceResponse is the GET /nfe/{id} envelope
type BlingInvoiceResponse struct {
	Data struct {
		ID         flexID      `json:"id"`
		Situacao   blingStatus `json:"situacao"`
		LinkDanfe  string      `json:"linkDanfe"`
		LinkPDF    string      `json:"linkPDF"`
		Numero     flexID      `json:"numero"`
		NumeroNota flexID      `json:"numeroNota"`
	} `json:"data"`
}

// DocumentLink returns linkDanfe, falling back to linkPDF
func (r *BlingInvoiceResponse) DocumentLink() string {
	if link := strings.TrimSpace(r.Data.LinkDanfe); link != "" {
		return link
	}
	return strings.TrimSpace(r.Data.LinkPDF)
}

// Number returns numero, falling back to numeroNota
func (r *BlingInvoiceResponse) Number() string {
	if r.Data.Numero != "" {
		return string(r.Data.Numero)
	}
	return string(r.Data.NumeroNota)
}

// ToInvoice converts the response to the gateway value object
func (r *BlingInvoiceResponse) ToInvoice() *integration.ERPInvoice {
	return &integration.ERPInvoice{
		ID:           string(r.Data.ID),
		StatusCode:   int(r.Data.Situacao),
		DocumentLink: r.DocumentLink(),
		Number:       r.Number(),
	}
}

// BlingTokenResponse is the OAuth token endpoint payload
type BlingTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// BlingErrorResponse is the error envelope Bling returns on non-2xx responses
type BlingErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Message     string `json:"message"`
		Description string `json:"description"`
	} `json:"error"`
}

// errorMessage extracts a readable message from an error body, if any
func errorMessage(body []byte) string {
	var resp BlingErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if resp.Error.Description != "" {
		return resp.Error.Description
	}
	return resp.Error.Message
}
