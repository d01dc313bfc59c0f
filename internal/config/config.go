package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // hours, 14 days
		Secret     string `env:"SECRET,required"`
		Issuer     string `env:"ISSUER" envDefault:"route-optimizer"`
	} `envPrefix:"JWT_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
		TemplatesDir string `env:"TEMPLATES_DIR" envDefault:"./templates"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN               string `env:"DSN,required"`
		PublishTimeout    int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		OptimizationQueue string `env:"OPTIMIZATION_QUEUE" envDefault:"optimization_queue"`
		EmailQueue        string `env:"EMAIL_QUEUE" envDefault:"email_queue"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		ProgressTTL         int    `env:"PROGRESS_TTL" envDefault:"86400"` // seconds
	} `envPrefix:"REDIS_"`
	Optimizer struct {
		TruckCount     int      `env:"TRUCK_COUNT" envDefault:"3"`
		TruckCapacity  int      `env:"TRUCK_CAPACITY" envDefault:"16"`
		TruckSpeed     float64  `env:"TRUCK_SPEED" envDefault:"18"`
		DepartureTimes []string `env:"DEPARTURE_TIMES" envDefault:"08:00" envSeparator:","`
		PopulationSize int      `env:"POPULATION_SIZE" envDefault:"50"`
		Generations    int      `env:"GENERATIONS" envDefault:"100"`
		CrossoverRate  float64  `env:"CROSSOVER_RATE" envDefault:"0.9"`
		MutationRate   float64  `env:"MUTATION_RATE" envDefault:"0.2"`
		LatePenalty    float64  `env:"LATE_PENALTY" envDefault:"20"`
		VehiclePenalty float64  `env:"VEHICLE_PENALTY" envDefault:"100"`
		Workers        int      `env:"WORKERS" envDefault:"4"`
		RunTimeout     int      `env:"RUN_TIMEOUT" envDefault:"1800"` // seconds
		ProfilesPath   string   `env:"PROFILES_PATH" envDefault:"./profiles.yaml"`
	} `envPrefix:"OPTIMIZER_"`
	Metrics struct {
		Port string `env:"PORT" envDefault:"9102"`
	} `envPrefix:"METRICS_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// the first error is enough to fix the environment
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
