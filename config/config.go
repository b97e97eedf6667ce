package config

import "github.com/caarlos0/env/v6"

type Config struct {
	Server struct {
		Port       string `env:"SERVER_PORT" envDefault:"5260"`
		SQLitePath string `env:"SQLITE_PATH" envDefault:"data/slabwise.db"`
	}

	// Economics assumptions used by the decision engine. Every knob can also
	// be overridden per request on the decision-queue API.
	Economics struct {
		PlatformFeeRate    float64 `env:"PLATFORM_FEE_RATE" envDefault:"0.13"`
		AvgShipCost        float64 `env:"AVG_SHIP_COST" envDefault:"15.0"`
		GradingCost        float64 `env:"GRADING_COST" envDefault:"45.0"`
		GradingShipInsure  float64 `env:"GRADING_SHIP_INSURE_COST" envDefault:"20.0"`
		TimePenaltyRate    float64 `env:"TIME_PENALTY_RATE" envDefault:"0.05"`
		SlabLiftMinDollars float64 `env:"SLAB_LIFT_MIN_DOLLARS" envDefault:"150.0"`
		SlabLiftMinPct     float64 `env:"SLAB_LIFT_MIN_PCT" envDefault:"0.20"`
	}

	Pricing struct {
		// Comps scoring below this are never stored as evidence candidates
		MinMatchScore float64 `env:"MIN_MATCH_SCORE" envDefault:"0.45"`

		// Maximum sold comps linked as evidence per item
		EvidenceCap int `env:"EVIDENCE_CAP" envDefault:"40"`

		// Maximum active comps considered for the anchor price
		ActiveCap int `env:"ACTIVE_CAP" envDefault:"20"`

		// Basis-count thresholds for the confidence tiers
		HighConfidenceCount   int `env:"HIGH_CONFIDENCE_COUNT" envDefault:"8"`
		MediumConfidenceCount int `env:"MEDIUM_CONFIDENCE_COUNT" envDefault:"3"`

		// Comp titles containing any of these tokens carry a qualified
		// (restoration/defect) designation for the qualified-subset band
		QualifiedKeywords []string `env:"QUALIFIED_KEYWORDS" envSeparator:"," envDefault:"qualified,restored,married,color touch"`

		// Number of concurrent item workers in a full recompute
		WorkerCount int `env:"REPRICE_WORKER_COUNT" envDefault:"4"`
	}

	BatchProcessing struct {
		// Maximum number of listings to accumulate before processing
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"100"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`

		// Buffer size of the listing queue
		QueueSize int `env:"BATCH_QUEUE_SIZE" envDefault:"50"`
	}

	Marketplace struct {
		ClientID     string `env:"MARKETPLACE_CLIENT_ID"`
		ClientSecret string `env:"MARKETPLACE_CLIENT_SECRET"`
		Env          string `env:"MARKETPLACE_ENV" envDefault:"sandbox"`
		ResultLimit  int    `env:"MARKETPLACE_RESULT_LIMIT" envDefault:"50"`
		MaxParallel  int    `env:"MARKETPLACE_MAX_PARALLEL" envDefault:"2"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
