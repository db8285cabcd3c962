package crm

import (
	"strings"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Contact is a person the caller tracks. Meetings reference contacts as attendees.
type Contact struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" json:"_id"`
	FirstName        string `gorm:"column:first_name;size:190;not null;default:''" json:"firstName"`
	LastName         string `gorm:"column:last_name;size:190;not null;default:''" json:"lastName"`
	Email            string `gorm:"column:email;size:320;not null;default:''" json:"email"`
	Phone            string `gorm:"column:phone;size:64;not null;default:''" json:"phoneNumber"`
	CreateBy         string `gorm:"column:create_by;size:190;not null;index:idx_contacts_owner_deleted,priority:1" json:"createBy"`
	Deleted          bool   `gorm:"column:deleted;not null;default:false;index:idx_contacts_owner_deleted,priority:2" json:"deleted"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"createdDate"`
}

// TableName provides the explicit table binding for GORM.
func (Contact) TableName() string {
	return "contacts"
}

func (c Contact) RecordID() string {
	return c.ID
}

func (c Contact) RecordOwnerID() string {
	return c.CreateBy
}

// Lead is a prospective customer. Meetings reference leads as attendees.
type Lead struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" json:"_id"`
	FirstName        string `gorm:"column:first_name;size:190;not null;default:''" json:"firstName"`
	LastName         string `gorm:"column:last_name;size:190;not null;default:''" json:"lastName"`
	Email            string `gorm:"column:email;size:320;not null;default:''" json:"email"`
	Phone            string `gorm:"column:phone;size:64;not null;default:''" json:"phoneNumber"`
	Source           string `gorm:"column:source;size:64;not null;default:''" json:"leadSource"`
	CreateBy         string `gorm:"column:create_by;size:190;not null;index:idx_leads_owner_deleted,priority:1" json:"createBy"`
	Deleted          bool   `gorm:"column:deleted;not null;default:false;index:idx_leads_owner_deleted,priority:2" json:"deleted"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"createdDate"`
}

// TableName provides the explicit table binding for GORM.
func (Lead) TableName() string {
	return "leads"
}

func (l Lead) RecordID() string {
	return l.ID
}

func (l Lead) RecordOwnerID() string {
	return l.CreateBy
}

// PersonPayload is the create shape shared by contacts and leads.
type PersonPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phoneNumber"`
}

func (p PersonPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 190)),
		validation.Field(&p.LastName, validation.Length(0, 190)),
		validation.Field(&p.Email, is.EmailFormat, validation.Length(0, 320)),
		validation.Field(&p.Phone, validation.Length(0, 64)),
	)
}

// ContactPayload creates a contact.
type ContactPayload struct {
	PersonPayload
}

func (p ContactPayload) Build(meta records.Meta) Contact {
	return Contact{
		ID:               meta.ID,
		FirstName:        strings.TrimSpace(p.FirstName),
		LastName:         strings.TrimSpace(p.LastName),
		Email:            strings.TrimSpace(p.Email),
		Phone:            strings.TrimSpace(p.Phone),
		CreateBy:         meta.OwnerID,
		CreatedAtSeconds: meta.CreatedAt.Unix(),
	}
}

// LeadPayload creates a lead.
type LeadPayload struct {
	PersonPayload
	Source string `json:"leadSource"`
}

func (p LeadPayload) Validate() error {
	if err := p.PersonPayload.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Source, validation.Length(0, 64)),
	)
}

func (p LeadPayload) Build(meta records.Meta) Lead {
	return Lead{
		ID:               meta.ID,
		FirstName:        strings.TrimSpace(p.FirstName),
		LastName:         strings.TrimSpace(p.LastName),
		Email:            strings.TrimSpace(p.Email),
		Phone:            strings.TrimSpace(p.Phone),
		Source:           strings.TrimSpace(p.Source),
		CreateBy:         meta.OwnerID,
		CreatedAtSeconds: meta.CreatedAt.Unix(),
	}
}
