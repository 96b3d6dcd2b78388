package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/xuebang/xuebang-api/config"
	ai_handlers "github.com/xuebang/xuebang-api/handlers/ai"
	auth_handlers "github.com/xuebang/xuebang-api/handlers/auth"
	membership_handlers "github.com/xuebang/xuebang-api/handlers/membership"
	payment_handlers "github.com/xuebang/xuebang-api/handlers/payment"
	submit_handlers "github.com/xuebang/xuebang-api/handlers/submit"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/services/extract"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/services/payment"
	"github.com/xuebang/xuebang-api/services/storage"
	"github.com/xuebang/xuebang-api/utils/auth"
	"github.com/xuebang/xuebang-api/utils/cache"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires services, middleware and handlers onto the fiber app.
// It returns the order service so the caller can hand it to the cron manager.
func SetupRoutes(app *fiber.App, db *gorm.DB, env *config.EnviornmentVariable) *services.OrderService {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "xuebang-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	})

	// Redis backs brute-force lockout and per-feature rate limiting.
	// Both degrade open when Redis is down.
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Lockout and rate limiting disabled.", err)
		redisCache = nil
	}

	protector := middleware.NewBruteForceProtector(redisCache)
	rateLimiter := middleware.NewFeatureRateLimiter(redisCache)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Core services
	llmClient := llm.NewClient(llm.Config{
		APIKey:  env.LLM_API_KEY,
		BaseURL: env.LLM_BASE_URL,
		Model:   env.LLM_MODEL,
	})
	normalizer := extract.NewNormalizer()

	var spacesClient *storage.SpacesClient
	if env.SPACES_ACCESS_KEY != "" {
		spacesClient, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: env.SPACES_ACCESS_KEY,
			SecretKey: env.SPACES_SECRET_KEY,
			Bucket:    env.SPACES_BUCKET,
			Region:    env.SPACES_REGION,
			Endpoint:  env.SPACES_ENDPOINT,
		})
		if err != nil {
			log.Printf("Warning: object storage unavailable: %v. Video uploads kept by name only.", err)
		}
	}

	var gateway payment.Gateway
	alipayGateway, err := payment.NewAlipayGateway(payment.AlipayConfig{
		AppID:        env.ALIPAY_APP_ID,
		PrivateKey:   env.ALIPAY_PRIVATE_KEY,
		AliPublicKey: env.ALIPAY_PUBLIC_KEY,
		IsProduction: env.ALIPAY_PRODUCTION,
		ReturnURL:    env.ALIPAY_RETURN_URL,
		NotifyURL:    env.ALIPAY_NOTIFY_URL,
	})
	if err != nil {
		log.Printf("Warning: payment gateway unavailable: %v. Purchase endpoints return 503.", err)
	} else {
		gateway = alipayGateway
	}

	tierService := services.NewTierService(db)
	entitlementService := services.NewEntitlementService(db, tierService)
	activationService := services.NewActivationService(db)
	orderService := services.NewOrderService(db, gateway, tierService, activationService)
	conversationService := services.NewConversationService(db)
	aiService := services.NewAIService(llmClient, conversationService, entitlementService)
	gradingService := services.NewGradingService(db, llmClient, normalizer, entitlementService)
	questionService := services.NewQuestionService(db, llmClient, normalizer, entitlementService)
	lectureService := services.NewLectureService(llmClient, normalizer, entitlementService)
	videoService := services.NewVideoService(db, llmClient, spacesClient, entitlementService)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, protector)
	aiHandler := ai_handlers.NewAIHandler(aiService, questionService, lectureService, videoService)
	paymentHandler := payment_handlers.NewPaymentHandler(orderService)
	membershipHandler := membership_handlers.NewMembershipHandler(tierService, entitlementService)
	submitHandler := submit_handlers.NewSubmitHandler(gradingService, questionService)

	// Global middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
	app.Use(middleware.SecurityHeaders())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.Me)

	// Membership
	membershipGroup := api.Group("/membership")
	membershipGroup.Get("/tiers", membershipHandler.ListTiers)
	membershipGroup.Get("/current", authMiddleware.Required(), membershipHandler.Current)
	membershipGroup.Get("/usage", authMiddleware.Required(), membershipHandler.Usage)

	// Payment. Gateway callbacks are unauthenticated: the signature check
	// is the authentication.
	paymentGroup := api.Group("/payment")
	paymentGroup.Post("/alipay/callback", paymentHandler.AlipayNotify)
	paymentGroup.Get("/alipay/return", paymentHandler.AlipayReturn)
	paymentGroup.Post("/create", authMiddleware.Required(), paymentHandler.CreateOrder)
	paymentGroup.Get("/orders", authMiddleware.Required(), paymentHandler.ListOrders)
	paymentGroup.Get("/query/:order_number", authMiddleware.Required(), paymentHandler.GetOrder)
	paymentGroup.Post("/cancel/:order_number", authMiddleware.Required(), paymentHandler.CancelOrder)
	paymentGroup.Post("/refund", authMiddleware.Required(), authMiddleware.RequireAdmin(), paymentHandler.Refund)

	// AI pipelines, each behind its per-minute rate limit
	aiGroup := api.Group("/ai", authMiddleware.Required())
	aiGroup.Post("/ask", rateLimiter.Limit(model.FeatureAIAsk), aiHandler.Ask)
	aiGroup.Post("/programming-help", rateLimiter.Limit(model.FeatureProgrammingHelp), aiHandler.ProgrammingHelp())
	aiGroup.Post("/code-review", rateLimiter.Limit(model.FeatureCodeReview), aiHandler.CodeReview())
	aiGroup.Post("/code-explain", rateLimiter.Limit(model.FeatureCodeExplain), aiHandler.CodeExplain())
	aiGroup.Post("/debug-help", rateLimiter.Limit(model.FeatureDebugHelp), aiHandler.DebugHelp())
	aiGroup.Post("/generate-question", rateLimiter.Limit(model.FeatureGenerateQuestion), aiHandler.GenerateQuestion)
	aiGroup.Post("/answer-questions", rateLimiter.Limit(model.FeatureGenerateQuestion), aiHandler.AnswerQuestions)
	aiGroup.Post("/generate-lecture", rateLimiter.Limit(model.FeatureGenerateLecture), aiHandler.GenerateLecture)
	aiGroup.Post("/summarize-video", rateLimiter.Limit(model.FeatureVideoSummary), aiHandler.VideoSummary)
	aiGroup.Post("/video-to-lecture", rateLimiter.Limit(model.FeatureVideoToLecture), aiHandler.VideoToLecture)

	// Grading and scoring
	api.Post("/submit", authMiddleware.Required(), rateLimiter.Limit(model.FeatureGradeAssignment), submitHandler.GradeAssignment)
	api.Post("/question/submit-answers", authMiddleware.Required(), submitHandler.SubmitAnswers)
	api.Get("/student/:id/scores", authMiddleware.Required(), submitHandler.StudentScores)

	return orderService
}
