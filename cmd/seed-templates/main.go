package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/database"
	"github.com/stemsi/exstem-delivery/internal/logger"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/repository"
)

// demoTemplateID is fixed so re-running the seed replaces the same template.
var demoTemplateID = uuid.MustParse("6f1c2a0e-3b7d-4c59-9e2a-1d4b8f0c7a31")

type questionWriter interface {
	Upsert(ctx context.Context, q *model.Question) error
}

func main() {
	var (
		idFlag   string
		duration int
		negative float64
	)
	flag.StringVar(&idFlag, "id", demoTemplateID.String(), "Template id to create or replace")
	flag.IntVar(&duration, "duration", 30, "Time limit in minutes")
	flag.Float64Var(&negative, "negative", 0.25, "Default negative marks (0 disables negative marking)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	templateID, err := uuid.Parse(idFlag)
	if err != nil {
		log.Fatal().Err(err).Str("id", idFlag).Msg("Invalid template id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Questions go wherever the server will read them from.
	var questions questionWriter = repository.NewQuestionRepository(pool)
	if cfg.QuestionSource == config.QuestionSourceMongo {
		client, err := database.NewMongoClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		questions = repository.NewMongoQuestionRepository(
			client.Database(cfg.MongoDatabase).Collection(cfg.MongoQuestionCollection))
	}

	fmt.Println("=== Seeding demo question set ===")

	bank := demoQuestions()
	for _, q := range bank {
		if err := questions.Upsert(ctx, q); err != nil {
			log.Fatal().Err(err).Str("question_id", q.ID).Msg("Failed to seed question")
		}
	}
	fmt.Printf("Seeded %d questions into %s\n", len(bank), cfg.QuestionSource)

	tmpl := demoTemplate(templateID, duration, negative)
	if err := repository.NewTemplateRepository(pool).Save(ctx, tmpl); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed template")
	}

	// The server caches bundles; drop any stale copy of this template.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cached bundle not invalidated")
	} else {
		defer rdb.Close()
		if err := repository.NewTemplateCache(rdb).Delete(ctx, tmpl.ID); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate cached bundle")
		}
	}

	fmt.Printf("\nSeed completed! Template %q (%s) with %d sections.\n", tmpl.Title, tmpl.ID, len(tmpl.Sections))
}

func demoQuestions() []*model.Question {
	return []*model.Question{
		{
			ID:           "demo-alg-1",
			QuestionText: "What is 7 x 8?",
			QuestionType: model.QuestionTypeSingleChoice,
			Options:      []model.Option{{Text: "54"}, {Text: "56", IsCorrect: true}, {Text: "58"}, {Text: "64"}},
			Explanation:  "7 x 8 = 56.",
		},
		{
			ID:           "demo-alg-2",
			QuestionText: "Which of these are prime numbers?",
			QuestionType: model.QuestionTypeMultipleChoice,
			Options: []model.Option{
				{Text: "2", IsCorrect: true}, {Text: "9"}, {Text: "11", IsCorrect: true}, {Text: "15"},
			},
			Explanation: "9 and 15 are composite.",
		},
		{
			ID:            "demo-alg-3",
			QuestionText:  "Solve for x: 3x + 4 = 19",
			QuestionType:  model.QuestionTypeNumeric,
			CorrectAnswer: "5",
		},
		{
			ID:           "demo-sci-1",
			QuestionText: "What is the chemical symbol for sodium?",
			QuestionType: model.QuestionTypeSingleChoice,
			Options:      []model.Option{{Text: "S"}, {Text: "So"}, {Text: "Na", IsCorrect: true}, {Text: "Sd"}},
		},
		{
			ID:           "demo-sci-2",
			QuestionText: "Which planets are gas giants?",
			QuestionType: model.QuestionTypeMultipleChoice,
			Options: []model.Option{
				{Text: "Mars"}, {Text: "Jupiter", IsCorrect: true}, {Text: "Saturn", IsCorrect: true}, {Text: "Venus"},
			},
		},
		{
			ID:            "demo-sci-3",
			QuestionText:  "How many bones are in the adult human body?",
			QuestionType:  model.QuestionTypeNumeric,
			CorrectAnswer: "206",
		},
	}
}

func demoTemplate(id uuid.UUID, duration int, negative float64) *model.TestTemplate {
	heavy := 1.0
	return &model.TestTemplate{
		ID:                    id,
		Title:                 "Demo Mixed Practice",
		Mode:                  model.TestModeTimed,
		DurationMinutes:       duration,
		NegativeMarking:       negative > 0,
		DefaultNegativeMarks:  negative,
		RandomizeSectionOrder: true,
		IsActive:              true,
		Sections: []model.TemplateSection{
			{
				Title:                  "Algebra",
				RandomizeQuestionOrder: true,
				Questions: []model.TemplateQuestion{
					{QuestionRef: "demo-alg-1", Marks: 4},
					{QuestionRef: "demo-alg-2", Marks: 4, NegativeMarks: &heavy},
					{QuestionRef: "demo-alg-3", Marks: 4},
				},
			},
			{
				Title:                  "Science",
				RandomizeQuestionOrder: true,
				Questions: []model.TemplateQuestion{
					{QuestionRef: "demo-sci-1", Marks: 2},
					{QuestionRef: "demo-sci-2", Marks: 3},
					{QuestionRef: "demo-sci-3", Marks: 3},
				},
			},
		},
	}
}
