package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	_ "modernc.org/sqlite"

	"github.com/airwatch-io/airwatch/internal/alertpub"
	"github.com/airwatch-io/airwatch/internal/api"
	"github.com/airwatch-io/airwatch/internal/ingest"
	"github.com/airwatch-io/airwatch/internal/store"
)

type CLI struct {
	DB             string   `help:"Path to SQLite database." default:"data/airwatch.db" env:"AIRWATCH_DB"`
	AlertThreshold float64  `help:"AQI value above which a measurement is an alert." default:"300" env:"ALERT_AQI_THRESHOLD"`
	KafkaBrokers   []string `help:"Kafka brokers for alert publication (disabled when empty)." env:"KAFKA_BROKERS"`
	KafkaTopic     string   `help:"Kafka topic for alert measurements." default:"air-quality-alerts" env:"KAFKA_ALERT_TOPIC"`

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the HTTP API server."`
	Import    ImportCmd    `cmd:"" help:"Ingest a local CSV file and exit."`
	ImportFTP ImportFTPCmd `cmd:"" name:"import-ftp" help:"Fetch a CSV drop over FTP, ingest it, and exit."`
}

type app struct {
	store    *store.Store
	pipeline *ingest.Pipeline
}

type ServeCmd struct {
	Addr string `help:"HTTP listen address." default:":8080" env:"AIRWATCH_ADDR"`
}

func (c *ServeCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(a.store, a.pipeline, c.Addr)
	log.Printf("starting server on %s", c.Addr)
	return server.Run(ctx)
}

type ImportCmd struct {
	Path string `arg:"" help:"CSV file to ingest."`
}

func (c *ImportCmd) Run(a *app) error {
	content, err := os.ReadFile(c.Path)
	if err != nil {
		return err
	}

	count, err := a.pipeline.Ingest(context.Background(), content)
	if err != nil {
		return err
	}
	log.Printf("ingested %d rows from %s", count, c.Path)
	return nil
}

type ImportFTPCmd struct {
	Host     string `help:"FTP host:port." required:""`
	Path     string `help:"Remote file path." required:""`
	User     string `help:"FTP user (anonymous when empty)."`
	Password string `help:"FTP password." env:"AIRWATCH_FTP_PASSWORD"`
}

func (c *ImportFTPCmd) Run(a *app) error {
	source := ingest.NewFTPSource(c.Host, c.Path, c.User, c.Password)
	content, err := source.Fetch()
	if err != nil {
		return err
	}

	count, err := a.pipeline.Ingest(context.Background(), content)
	if err != nil {
		return err
	}
	log.Printf("ingested %d rows from ftp://%s%s", count, c.Host, c.Path)
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("airwatch"),
		kong.Description("Air-quality ingestion and query service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, cli.AlertThreshold)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var publisher ingest.AlertPublisher
	if len(cli.KafkaBrokers) > 0 {
		writer := alertpub.NewWriter(cli.KafkaBrokers, cli.KafkaTopic)
		defer writer.Close()
		publisher = writer
		log.Printf("alert publication enabled (topic %s)", cli.KafkaTopic)
	}

	a := &app{
		store:    st,
		pipeline: ingest.NewPipeline(st, publisher),
	}

	kctx.FatalIfErrorf(kctx.Run(a))
}
