package crm

import (
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/users"
)

// Entity names double as route segments.
const (
	EntityMeetings = "meetings"
	EntityContacts = "contacts"
	EntityLeads    = "leads"
)

const (
	fieldID        = "_id"
	fieldCreateBy  = "createBy"
	fieldCreatedBy = "createdByName"
	columnCreateBy = "create_by"
)

// MeetingDescriptor joins meetings to their owner, attendee contacts and attendee leads.
func MeetingDescriptor() records.Descriptor {
	return records.Descriptor{
		Entity:         EntityMeetings,
		Table:          Meeting{}.TableName(),
		OwnerTable:     users.User{}.TableName(),
		OwnerColumn:    columnCreateBy,
		OwnerField:     fieldCreateBy,
		OwnerNameField: fieldCreatedBy,
		Filterable: map[string]string{
			fieldID:    "id",
			"agenda":   "agenda",
			"location": "location",
			"related":  "related",
			"dateTime": "date_time",
		},
		Relations: []records.Relation{
			{
				IDField:          "attendees",
				NameField:        "attendeesNames",
				LinkTable:        MeetingAttendee{}.TableName(),
				LinkRecordColumn: "meeting_id",
				LinkTargetColumn: "contact_id",
				TargetTable:      Contact{}.TableName(),
			},
			{
				IDField:          "attendeeLeads",
				NameField:        "attendeesLeadNames",
				LinkTable:        MeetingAttendeeLead{}.TableName(),
				LinkRecordColumn: "meeting_id",
				LinkTargetColumn: "lead_id",
				TargetTable:      Lead{}.TableName(),
			},
		},
	}
}

// ContactDescriptor joins contacts to their owner.
func ContactDescriptor() records.Descriptor {
	return records.Descriptor{
		Entity:         EntityContacts,
		Table:          Contact{}.TableName(),
		OwnerTable:     users.User{}.TableName(),
		OwnerColumn:    columnCreateBy,
		OwnerField:     fieldCreateBy,
		OwnerNameField: fieldCreatedBy,
		Filterable:     personFilters(),
	}
}

// LeadDescriptor joins leads to their owner.
func LeadDescriptor() records.Descriptor {
	filters := personFilters()
	filters["leadSource"] = "source"
	return records.Descriptor{
		Entity:         EntityLeads,
		Table:          Lead{}.TableName(),
		OwnerTable:     users.User{}.TableName(),
		OwnerColumn:    columnCreateBy,
		OwnerField:     fieldCreateBy,
		OwnerNameField: fieldCreatedBy,
		Filterable:     filters,
	}
}

func personFilters() map[string]string {
	return map[string]string{
		fieldID:       "id",
		"firstName":   "first_name",
		"lastName":    "last_name",
		"email":       "email",
		"phoneNumber": "phone",
	}
}

// Models lists every table the CRM entities need migrated.
func Models() []any {
	return []any{
		&Meeting{},
		&MeetingAttendee{},
		&MeetingAttendeeLead{},
		&Contact{},
		&Lead{},
	}
}
