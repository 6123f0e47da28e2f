package app

import (
	"zapfleet/internal/auth"
	"zapfleet/internal/repo"
	"zapfleet/internal/services"
	"zapfleet/internal/zapplus"

	"gorm.io/gorm"
)

// Services holds all application services
type Services struct {
	DB          *gorm.DB
	AuthService *auth.Service
	UserRepo    *repo.UserRepository
	ChannelRepo *repo.ChannelRepository
	GroupRepo   *repo.GroupRepository
	SeriesRepo  *repo.GroupSeriesRepository
	ZapClient   *zapplus.Client

	SyncService *services.SyncService
	Provisioner *services.ProvisioningService
	Monitor     *services.GroupMonitorService
}

// NewServices creates a new services container. The fleet engines are wired
// separately via WireFleet once an event publisher exists.
func NewServices(db *gorm.DB) *Services {
	// Initialize repositories
	userRepo := repo.NewUserRepository(db)
	channelRepo := repo.NewChannelRepository(db)
	groupRepo := repo.NewGroupRepository(db)
	seriesRepo := repo.NewGroupSeriesRepository(db)

	// Initialize services
	authService := auth.NewService(userRepo)
	zapClient := zapplus.GetClient()

	return &Services{
		DB:          db,
		AuthService: authService,
		UserRepo:    userRepo,
		ChannelRepo: channelRepo,
		GroupRepo:   groupRepo,
		SeriesRepo:  seriesRepo,
		ZapClient:   zapClient,
	}
}

// WireFleet builds the sync, provisioning and monitoring engines on top of
// the repositories, pushing their events through the given publisher.
func (s *Services) WireFleet(publisher services.EventPublisher) {
	s.SyncService = services.NewSyncService(s.GroupRepo, s.ChannelRepo, s.ZapClient, publisher)
	s.Provisioner = services.NewProvisioningService(s.GroupRepo, s.SeriesRepo, s.ChannelRepo, s.ZapClient, publisher)
	s.Monitor = services.NewGroupMonitorService(s.GroupRepo, s.SeriesRepo, s.ChannelRepo, s.ZapClient, s.Provisioner, publisher)
}
