package crm

import (
	"time"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type (
	MeetingService = records.Service[Meeting, MeetingPayload]
	ContactService = records.Service[Contact, ContactPayload]
	LeadService    = records.Service[Lead, LeadPayload]
)

// ServicesConfig carries the dependencies shared by every entity service.
type ServicesConfig struct {
	Database   *gorm.DB
	Identities records.IdentityResolver
	IDProvider records.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
	Metrics    metrics.Recorder
}

// Services bundles one record service per CRM entity.
type Services struct {
	Meetings *MeetingService
	Contacts *ContactService
	Leads    *LeadService
}

// NewServices builds the meeting, contact and lead services over one store.
func NewServices(cfg ServicesConfig) (*Services, error) {
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = records.NewUUIDProvider()
	}
	base := records.ServiceConfig{
		Database:   cfg.Database,
		Identities: cfg.Identities,
		IDProvider: idProvider,
		Clock:      cfg.Clock,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	}

	meetingConfig := base
	meetingConfig.Descriptor = MeetingDescriptor()
	meetings, err := records.NewService[Meeting, MeetingPayload](meetingConfig)
	if err != nil {
		return nil, err
	}

	contactConfig := base
	contactConfig.Descriptor = ContactDescriptor()
	contacts, err := records.NewService[Contact, ContactPayload](contactConfig)
	if err != nil {
		return nil, err
	}

	leadConfig := base
	leadConfig.Descriptor = LeadDescriptor()
	leads, err := records.NewService[Lead, LeadPayload](leadConfig)
	if err != nil {
		return nil, err
	}

	return &Services{Meetings: meetings, Contacts: contacts, Leads: leads}, nil
}
