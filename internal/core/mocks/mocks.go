package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of ports.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByFullName(ctx context.Context, fullName string) ([]*domain.User, error) {
	args := m.Called(ctx, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) ([]*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ListAgents(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) FirstActiveAdmin(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockTicketRepository is a mock implementation of ports.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{}
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByChatThread(ctx context.Context, threadRef string) (*domain.Ticket, error) {
	args := m.Called(ctx, threadRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

// Update also accepts a func(context.Context, *domain.Ticket) *domain.Ticket
// return value, so tests can echo the saved ticket back.
func (m *MockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if fn, ok := args.Get(0).(func(context.Context, *domain.Ticket) *domain.Ticket); ok {
		return fn(ctx, ticket), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) LinkChatThread(ctx context.Context, ticketID int64, threadRef string) (bool, error) {
	args := m.Called(ctx, ticketID, threadRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketRepository) ListUnassignedOpen(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListOpenByAssigneeNewestFirst(ctx context.Context, assigneeID uuid.UUID, limit int) ([]*domain.Ticket, error) {
	args := m.Called(ctx, assigneeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListBreachCandidates(ctx context.Context, now time.Time) ([]*domain.Ticket, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListEscalationCandidates(ctx context.Context, now time.Time) ([]domain.EscalationCandidate, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EscalationCandidate), args.Error(1)
}

func (m *MockTicketRepository) ListArchivable(ctx context.Context, closedBefore time.Time) ([]*domain.Ticket, error) {
	args := m.Called(ctx, closedBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) CountActiveByAssignee(ctx context.Context) (map[uuid.UUID]domain.WorkloadCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]domain.WorkloadCounts), args.Error(1)
}

func (m *MockTicketRepository) GetSLAStats(ctx context.Context) (*domain.SLAStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAStats), args.Error(1)
}

// MockIdentityMappingRepository is a mock implementation of ports.IdentityMappingRepository
type MockIdentityMappingRepository struct {
	mock.Mock
}

func NewMockIdentityMappingRepository() *MockIdentityMappingRepository {
	return &MockIdentityMappingRepository{}
}

func (m *MockIdentityMappingRepository) GetByExternalID(ctx context.Context, channel domain.Channel, externalID string) (*domain.IdentityMapping, error) {
	args := m.Called(ctx, channel, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdentityMapping), args.Error(1)
}

func (m *MockIdentityMappingRepository) GetByUserID(ctx context.Context, channel domain.Channel, userID uuid.UUID) (*domain.IdentityMapping, error) {
	args := m.Called(ctx, channel, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdentityMapping), args.Error(1)
}

func (m *MockIdentityMappingRepository) Create(ctx context.Context, mapping *domain.IdentityMapping) (*domain.IdentityMapping, error) {
	args := m.Called(ctx, mapping)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdentityMapping), args.Error(1)
}

// MockSLAPolicyRepository is a mock implementation of ports.SLAPolicyRepository
type MockSLAPolicyRepository struct {
	mock.Mock
}

func NewMockSLAPolicyRepository() *MockSLAPolicyRepository {
	return &MockSLAPolicyRepository{}
}

func (m *MockSLAPolicyRepository) ListActiveByPriority(ctx context.Context, priority domain.TicketPriority) ([]*domain.SLAPolicy, error) {
	args := m.Called(ctx, priority)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SLAPolicy), args.Error(1)
}

func (m *MockSLAPolicyRepository) GetByID(ctx context.Context, id int64) (*domain.SLAPolicy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAPolicy), args.Error(1)
}

func (m *MockSLAPolicyRepository) ListActive(ctx context.Context) ([]*domain.SLAPolicy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SLAPolicy), args.Error(1)
}

func (m *MockSLAPolicyRepository) Create(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	args := m.Called(ctx, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAPolicy), args.Error(1)
}

// MockCommentRepository is a mock implementation of ports.CommentRepository
type MockCommentRepository struct {
	mock.Mock
}

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{}
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	args := m.Called(ctx, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Comment, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Comment), args.Error(1)
}

// MockAttachmentRepository is a mock implementation of ports.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

func NewMockAttachmentRepository() *MockAttachmentRepository {
	return &MockAttachmentRepository{}
}

func (m *MockAttachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) (*domain.Attachment, error) {
	args := m.Called(ctx, attachment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Attachment), args.Error(1)
}

func (m *MockAttachmentRepository) ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Attachment, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Attachment), args.Error(1)
}

// MockProcessedEventStore is a mock implementation of ports.ProcessedEventStore
type MockProcessedEventStore struct {
	mock.Mock
}

func NewMockProcessedEventStore() *MockProcessedEventStore {
	return &MockProcessedEventStore{}
}

func (m *MockProcessedEventStore) Seen(ctx context.Context, channel domain.Channel, eventID string) (bool, error) {
	args := m.Called(ctx, channel, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProcessedEventStore) Record(ctx context.Context, channel domain.Channel, eventID string) error {
	args := m.Called(ctx, channel, eventID)
	return args.Error(0)
}

// MockAuthorizationService is a mock implementation of ports.AuthorizationService
type MockAuthorizationService struct {
	mock.Mock
}

func NewMockAuthorizationService() *MockAuthorizationService {
	return &MockAuthorizationService{}
}

func (m *MockAuthorizationService) Can(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	args := m.Called(ctx, userID, permission)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthorizationService) GetPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockAuthService is a mock implementation of ports.AuthService
type MockAuthService struct {
	mock.Mock
}

func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockTicketService is a mock implementation of ports.TicketService
type MockTicketService struct {
	mock.Mock
}

func NewMockTicketService() *MockTicketService {
	return &MockTicketService{}
}

func (m *MockTicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) AssignTicket(ctx context.Context, params ports.AssignTicketParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) ArchiveClosed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockCommentService is a mock implementation of ports.CommentService
type MockCommentService struct {
	mock.Mock
}

func NewMockCommentService() *MockCommentService {
	return &MockCommentService{}
}

func (m *MockCommentService) CreateComment(ctx context.Context, params ports.CreateCommentParams) (*domain.Comment, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Comment), args.Error(1)
}

// MockAttachmentService is a mock implementation of ports.AttachmentService
type MockAttachmentService struct {
	mock.Mock
}

func NewMockAttachmentService() *MockAttachmentService {
	return &MockAttachmentService{}
}

func (m *MockAttachmentService) StoreAttachment(ctx context.Context, params ports.StoreAttachmentParams) (*domain.Attachment, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Attachment), args.Error(1)
}

// MockIdentityResolver is a mock implementation of ports.IdentityResolver
type MockIdentityResolver struct {
	mock.Mock
}

func NewMockIdentityResolver() *MockIdentityResolver {
	return &MockIdentityResolver{}
}

func (m *MockIdentityResolver) Resolve(ctx context.Context, channel domain.Channel, externalID string, lookup ports.ActorDirectoryLookup) (*domain.User, bool, error) {
	args := m.Called(ctx, channel, externalID, lookup)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.User), args.Bool(1), args.Error(2)
}

// MockConversationCorrelator is a mock implementation of ports.ConversationCorrelator
type MockConversationCorrelator struct {
	mock.Mock
}

func NewMockConversationCorrelator() *MockConversationCorrelator {
	return &MockConversationCorrelator{}
}

func (m *MockConversationCorrelator) LinkTicketToConversation(ctx context.Context, ticketID int64, handle domain.ConversationHandle) (bool, error) {
	args := m.Called(ctx, ticketID, handle)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationCorrelator) FindTicketByHandle(ctx context.Context, handle domain.ConversationHandle) (*domain.Ticket, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockConversationCorrelator) IsDuplicate(ctx context.Context, channel domain.Channel, eventID string) (bool, error) {
	args := m.Called(ctx, channel, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationCorrelator) MarkProcessed(ctx context.Context, channel domain.Channel, eventID string) {
	m.Called(ctx, channel, eventID)
}

// MockSLAService is a mock implementation of ports.SLAService
type MockSLAService struct {
	mock.Mock
}

func NewMockSLAService() *MockSLAService {
	return &MockSLAService{}
}

func (m *MockSLAService) ApplyPolicy(ctx context.Context, ticket *domain.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockSLAService) ScanBreaches(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSLAService) ScanEscalations(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSLAService) MarkResponseMet(ctx context.Context, ticketID int64) error {
	args := m.Called(ctx, ticketID)
	return args.Error(0)
}

func (m *MockSLAService) ListPolicies(ctx context.Context) ([]*domain.SLAPolicy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SLAPolicy), args.Error(1)
}

func (m *MockSLAService) CreatePolicy(ctx context.Context, params domain.SLAPolicyParams) (*domain.SLAPolicy, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAPolicy), args.Error(1)
}

func (m *MockSLAService) GetStats(ctx context.Context) (*domain.SLAStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAStats), args.Error(1)
}

// MockAssignmentService is a mock implementation of ports.AssignmentService
type MockAssignmentService struct {
	mock.Mock
}

func NewMockAssignmentService() *MockAssignmentService {
	return &MockAssignmentService{}
}

func (m *MockAssignmentService) AvailableAgents(ctx context.Context) ([]domain.AgentWorkload, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AgentWorkload), args.Error(1)
}

func (m *MockAssignmentService) Assign(ctx context.Context, ticketID int64, policy ports.AssignmentPolicy) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockAssignmentService) ProcessUnassigned(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAssignmentService) Rebalance(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockNotificationService is a mock implementation of ports.NotificationService.
// Expectations the test does not care about can be registered with Maybe().
type MockNotificationService struct {
	mock.Mock
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{}
}

func (m *MockNotificationService) TicketCreated(ctx context.Context, ticket *domain.Ticket, files []ports.AttachmentUpload) {
	m.Called(ctx, ticket, files)
}

func (m *MockNotificationService) StatusChanged(ctx context.Context, ticket *domain.Ticket) {
	m.Called(ctx, ticket)
}

func (m *MockNotificationService) TicketAssigned(ctx context.Context, ticket *domain.Ticket, assignee *domain.User) {
	m.Called(ctx, ticket, assignee)
}

func (m *MockNotificationService) CommentAdded(ctx context.Context, ticket *domain.Ticket, comment *domain.Comment, origin domain.Channel) {
	m.Called(ctx, ticket, comment, origin)
}

func (m *MockNotificationService) AttachmentAdded(ctx context.Context, attachment *domain.Attachment) {
	m.Called(ctx, attachment)
}

func (m *MockNotificationService) SLABreached(ctx context.Context, ticket *domain.Ticket) {
	m.Called(ctx, ticket)
}

func (m *MockNotificationService) TicketEscalated(ctx context.Context, ticket *domain.Ticket, target *domain.User) {
	m.Called(ctx, ticket, target)
}

func (m *MockNotificationService) TicketArchived(ctx context.Context, ticket *domain.Ticket) {
	m.Called(ctx, ticket)
}

func (m *MockNotificationService) ReplyInThread(ctx context.Context, threadRef, text string) {
	m.Called(ctx, threadRef, text)
}

func (m *MockNotificationService) ScheduleConfirmation(ticket *domain.Ticket, delay time.Duration) {
	m.Called(ticket, delay)
}

func (m *MockNotificationService) Shutdown() {
	m.Called()
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(ctx context.Context, n ports.Notification) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockBlobStore is a mock implementation of ports.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{}
}

func (m *MockBlobStore) Store(ctx context.Context, data []byte, name string, ticketID int64) (string, error) {
	args := m.Called(ctx, data, name, ticketID)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Read(ctx context.Context, handle string) ([]byte, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockActorDirectoryLookup is a mock implementation of ports.ActorDirectoryLookup
type MockActorDirectoryLookup struct {
	mock.Mock
}

func NewMockActorDirectoryLookup() *MockActorDirectoryLookup {
	return &MockActorDirectoryLookup{}
}

func (m *MockActorDirectoryLookup) LookupActor(ctx context.Context, externalID string) (*domain.ActorInfo, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActorInfo), args.Error(1)
}

// MockFileFetcher is a mock implementation of ports.FileFetcher
type MockFileFetcher struct {
	mock.Mock
}

func NewMockFileFetcher() *MockFileFetcher {
	return &MockFileFetcher{}
}

func (m *MockFileFetcher) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	args := m.Called(ctx, url, maxBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockChatIngestService is a mock implementation of ports.ChatIngestService
type MockChatIngestService struct {
	mock.Mock
}

func NewMockChatIngestService() *MockChatIngestService {
	return &MockChatIngestService{}
}

func (m *MockChatIngestService) HandleMessage(ctx context.Context, msg domain.InboundChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockEmailIngestService is a mock implementation of ports.EmailIngestService
type MockEmailIngestService struct {
	mock.Mock
}

func NewMockEmailIngestService() *MockEmailIngestService {
	return &MockEmailIngestService{}
}

func (m *MockEmailIngestService) HandleEmail(ctx context.Context, email domain.InboundEmail) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
