package crm

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Related values accepted on meetings.
const (
	RelatedContact = "Contact"
	RelatedLead    = "Lead"
)

// Meeting is the primary record of the meeting history.
type Meeting struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" json:"_id"`
	Agenda           string `gorm:"column:agenda;size:512;not null" json:"agenda"`
	Location         string `gorm:"column:location;size:512;not null;default:''" json:"location"`
	Related          string `gorm:"column:related;size:32;not null;default:''" json:"related"`
	DateTime         string `gorm:"column:date_time;size:64;not null;default:''" json:"dateTime"`
	Notes            string `gorm:"column:notes;type:text" json:"notes"`
	CreateBy         string `gorm:"column:create_by;size:190;not null;index:idx_meetings_owner_deleted,priority:1" json:"createBy"`
	Deleted          bool   `gorm:"column:deleted;not null;default:false;index:idx_meetings_owner_deleted,priority:2" json:"deleted"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"timestamp"`

	Attendees     []string `gorm:"-" json:"attendees"`
	AttendeeLeads []string `gorm:"-" json:"attendeeLeads"`

	AttendeeLinks     []MeetingAttendee     `gorm:"foreignKey:MeetingID;references:ID" json:"-"`
	AttendeeLeadLinks []MeetingAttendeeLead `gorm:"foreignKey:MeetingID;references:ID" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Meeting) TableName() string {
	return "meetings"
}

func (m Meeting) RecordID() string {
	return m.ID
}

func (m Meeting) RecordOwnerID() string {
	return m.CreateBy
}

// MeetingAttendee links a meeting to a contact at a fixed ordinal.
type MeetingAttendee struct {
	MeetingID string `gorm:"column:meeting_id;primaryKey;size:190;not null"`
	Ordinal   int    `gorm:"column:ordinal;primaryKey;autoIncrement:false;not null"`
	ContactID string `gorm:"column:contact_id;size:190;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (MeetingAttendee) TableName() string {
	return "meeting_attendees"
}

// MeetingAttendeeLead links a meeting to a lead at a fixed ordinal.
type MeetingAttendeeLead struct {
	MeetingID string `gorm:"column:meeting_id;primaryKey;size:190;not null"`
	Ordinal   int    `gorm:"column:ordinal;primaryKey;autoIncrement:false;not null"`
	LeadID    string `gorm:"column:lead_id;size:190;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (MeetingAttendeeLead) TableName() string {
	return "meeting_attendee_leads"
}

// MeetingPayload is the accepted create shape. Ownership always comes from the caller.
type MeetingPayload struct {
	Agenda        string   `json:"agenda"`
	Attendees     []string `json:"attendees"`
	AttendeeLeads []string `json:"attendeeLeads"`
	Location      string   `json:"location"`
	Related       string   `json:"related"`
	DateTime      string   `json:"dateTime"`
	Notes         string   `json:"notes"`
}

func (p MeetingPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Agenda, validation.Required, validation.Length(1, 512)),
		validation.Field(&p.Attendees, validation.Each(validation.Required, validation.Length(1, 190))),
		validation.Field(&p.AttendeeLeads, validation.Each(validation.Required, validation.Length(1, 190))),
		validation.Field(&p.Location, validation.Length(0, 512)),
		validation.Field(&p.Related, validation.In(RelatedContact, RelatedLead)),
		validation.Field(&p.DateTime, validation.Date(time.RFC3339)),
		validation.Field(&p.Notes, validation.Length(0, 16384)),
	)
}

// Build assembles the meeting and its link rows. Repeated ids keep their first ordinal.
func (p MeetingPayload) Build(meta records.Meta) Meeting {
	meeting := Meeting{
		ID:               meta.ID,
		Agenda:           strings.TrimSpace(p.Agenda),
		Location:         strings.TrimSpace(p.Location),
		Related:          p.Related,
		DateTime:         p.DateTime,
		Notes:            p.Notes,
		CreateBy:         meta.OwnerID,
		CreatedAtSeconds: meta.CreatedAt.Unix(),
		Attendees:        distinct(p.Attendees),
		AttendeeLeads:    distinct(p.AttendeeLeads),
	}
	for ordinal, contactID := range meeting.Attendees {
		meeting.AttendeeLinks = append(meeting.AttendeeLinks, MeetingAttendee{
			MeetingID: meta.ID,
			Ordinal:   ordinal,
			ContactID: contactID,
		})
	}
	for ordinal, leadID := range meeting.AttendeeLeads {
		meeting.AttendeeLeadLinks = append(meeting.AttendeeLeadLinks, MeetingAttendeeLead{
			MeetingID: meta.ID,
			Ordinal:   ordinal,
			LeadID:    leadID,
		})
	}
	return meeting
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
