package persistence

import (
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/integration"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InstallmentModel is the GORM model for commission installments
type InstallmentModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProposalID    uuid.UUID       `gorm:"column:proposta_id;type:uuid;not null;index"`
	Sequence      int             `gorm:"column:numero_parcela;not null"`
	Amount        decimal.Decimal `gorm:"column:valor;type:decimal(14,2);not null"`
	DueDate       time.Time       `gorm:"column:data_vencimento;type:date"`
	Status        string          `gorm:"column:status;type:varchar(20);not null;index"`
	SalesOrderID  *uuid.UUID      `gorm:"column:pedido_venda_id;type:uuid;index"`
	DocumentLink  *string         `gorm:"column:link_danfe"`
	InvoiceNumber *string         `gorm:"column:numero_nfe;type:varchar(30)"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for the model
func (InstallmentModel) TableName() string {
	return "parcelas"
}

// ToEntity converts the model to a domain entity
func (m *InstallmentModel) ToEntity() reconciliation.Installment {
	return reconciliation.Installment{
		ID:           m.ID,
		ProposalID:   m.ProposalID,
		Sequence:     m.Sequence,
		Amount:       m.Amount,
		DueDate:      m.DueDate,
		Status:       reconciliation.CommissionStatus(m.Status),
		SalesOrderID: m.SalesOrderID,
		Invoice:      reconciliation.InvoiceDocument{Link: deref(m.DocumentLink), Number: deref(m.InvoiceNumber)},
		CreatedAt:    m.CreatedAt,
	}
}

// InstallmentModelFromEntity creates a model from a domain entity
func InstallmentModelFromEntity(e reconciliation.Installment) *InstallmentModel {
	return &InstallmentModel{
		ID:            e.ID,
		ProposalID:    e.ProposalID,
		Sequence:      e.Sequence,
		Amount:        e.Amount,
		DueDate:       e.DueDate,
		Status:        string(e.Status),
		SalesOrderID:  e.SalesOrderID,
		DocumentLink:  nullable(e.Invoice.Link),
		InvoiceNumber: nullable(e.Invoice.Number),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.CreatedAt,
	}
}

// ProposalModel is the GORM model for proposals (read-only here)
type ProposalModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID *uuid.UUID      `gorm:"column:cliente_id;type:uuid;index"`
	TotalValue decimal.Decimal `gorm:"column:valor_total;type:decimal(14,2)"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for the model
func (ProposalModel) TableName() string {
	return "propostas"
}

// ToEntity converts the model to a domain entity
func (m *ProposalModel) ToEntity() *reconciliation.Proposal {
	return &reconciliation.Proposal{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		TotalValue: m.TotalValue,
		CreatedAt:  m.CreatedAt,
	}
}

// CustomerModel is the GORM model for customers (read-only here)
type CustomerModel struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"column:nome;type:varchar(200)"`
}

// TableName returns the table name for the model
func (CustomerModel) TableName() string {
	return "clientes"
}

// SalesOrderModel is the GORM model for sales orders mirrored from the ERP
type SalesOrderModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Number        string          `gorm:"column:numero_pedido;type:varchar(50)"`
	CustomerID    *uuid.UUID      `gorm:"column:cliente_id;type:uuid;index"`
	Total         decimal.Decimal `gorm:"column:valor_total;type:decimal(14,2);not null"`
	OrderDate     time.Time       `gorm:"column:data_pedido"`
	ERPOrderID    *string         `gorm:"column:bling_pedido_id;type:varchar(40);index"`
	DocumentLink  *string         `gorm:"column:link_danfe"`
	InvoiceNumber *string         `gorm:"column:numero_nfe;type:varchar(30)"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for the model
func (SalesOrderModel) TableName() string {
	return "pedidos_venda"
}

// ToEntity converts the model to a domain entity
func (m *SalesOrderModel) ToEntity() reconciliation.SalesOrder {
	return reconciliation.SalesOrder{
		ID:         m.ID,
		Number:     m.Number,
		CustomerID: m.CustomerID,
		Total:      m.Total,
		OrderDate:  m.OrderDate,
		ERPOrderID: deref(m.ERPOrderID),
		Invoice:    reconciliation.InvoiceDocument{Link: deref(m.DocumentLink), Number: deref(m.InvoiceNumber)},
	}
}

// SalesOrderModelFromEntity creates a model from a domain entity
func SalesOrderModelFromEntity(e reconciliation.SalesOrder) *SalesOrderModel {
	now := time.Now()
	return &SalesOrderModel{
		ID:            e.ID,
		Number:        e.Number,
		CustomerID:    e.CustomerID,
		Total:         e.Total,
		OrderDate:     e.OrderDate,
		ERPOrderID:    nullable(e.ERPOrderID),
		DocumentLink:  nullable(e.Invoice.Link),
		InvoiceNumber: nullable(e.Invoice.Number),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ERPCredentialModel is the GORM model for the OAuth token pair of an ERP provider
type ERPCredentialModel struct {
	Provider     string    `gorm:"column:provider;type:varchar(30);primaryKey"`
	AccessToken  string    `gorm:"column:access_token;type:text"`
	RefreshToken string    `gorm:"column:refresh_token;type:text;not null"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (ERPCredentialModel) TableName() string {
	return "erp_credenciais"
}

// ToEntity converts the model to a domain entity
func (m *ERPCredentialModel) ToEntity() *integration.OAuthCredentials {
	return &integration.OAuthCredentials{
		Provider:     m.Provider,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		ExpiresAt:    m.ExpiresAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// AutoMigrate creates the tables the engine touches. Schema ownership stays with
// the main application; this exists for tests and local development.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&CustomerModel{},
		&ProposalModel{},
		&SalesOrderModel{},
		&InstallmentModel{},
		&ERPCredentialModel{},
	)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
