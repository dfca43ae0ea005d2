package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	database "github.com/CamberLoid/sealedbid/internal/db"
	"github.com/CamberLoid/sealedbid/internal/ffs"
	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/CamberLoid/sealedbid/internal/serverlib"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

var (
	Database *sql.DB
)

const (
	DefaultListenPort = "16001"
	DefaultVersion    = "indev"
	DefaultListenAddr = "127.0.0.1"
	DefaultLogLevel   = "info"
	EnvPrefix         = "AUCTION"
)

var (
	ConfigListenAddr = DefaultListenAddr
	ConfigListenPort = DefaultListenPort
	ConfigVersion    = DefaultVersion
)

// 配置项名称，同时用于配置文件、AUCTION_* 环境变量和命令行参数
const (
	keyListenAddr  = "listenAddr"
	keyListenPort  = "listenPort"
	keyDatabase    = "database"
	keyPrimeBits   = "primeBits"
	keyRounds      = "rounds"
	keyAllowedIDs  = "allowedIDs"
	keyAdminToken  = "adminToken"
	keyLogLevel    = "logLevel"
	keyAuthOpen    = "authOpen"
	keyBiddingOpen = "biddingOpen"
)

func configDefaults(v *viper.Viper) {
	v.SetDefault(keyListenAddr, DefaultListenAddr)
	v.SetDefault(keyListenPort, DefaultListenPort)
	v.SetDefault(keyDatabase, ConfigDatabasePath)
	v.SetDefault(keyPrimeBits, params.DefaultBits)
	v.SetDefault(keyRounds, ffs.DefaultRounds)
	v.SetDefault(keyLogLevel, DefaultLogLevel)
	v.SetDefault(keyAuthOpen, true)
	v.SetDefault(keyBiddingOpen, false)
}

// loadConfig 依次叠加默认值、配置文件、环境变量和显式给出的命令行参数
func loadConfig(c *cli.Context) (*viper.Viper, error) {
	v := viper.New()
	configDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := c.String("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	for _, k := range []string{keyListenAddr, keyListenPort, keyDatabase, keyAdminToken, keyLogLevel} {
		if c.IsSet(k) {
			v.Set(k, c.String(k))
		}
	}
	for _, k := range []string{keyPrimeBits, keyRounds} {
		if c.IsSet(k) {
			v.Set(k, c.Int(k))
		}
	}
	for _, k := range []string{keyAuthOpen, keyBiddingOpen} {
		if c.IsSet(k) {
			v.Set(k, c.Bool(k))
		}
	}
	if c.IsSet(keyAllowedIDs) {
		v.Set(keyAllowedIDs, c.StringSlice(keyAllowedIDs))
	}
	return v, nil
}

// loggerInit 按配置设置日志级别
func loggerInit(level string) {
	threshold := jww.LevelInfo
	switch strings.ToLower(level) {
	case "trace":
		threshold = jww.LevelTrace
	case "debug":
		threshold = jww.LevelDebug
	case "warn", "warning":
		threshold = jww.LevelWarn
	case "error":
		threshold = jww.LevelError
	}
	jww.SetLogThreshold(threshold)
	jww.SetStdoutThreshold(threshold)
}

func run(c *cli.Context) error {
	v, err := loadConfig(c)
	if err != nil {
		return err
	}
	loggerInit(v.GetString(keyLogLevel))
	ConfigListenAddr, ConfigListenPort = v.GetString(keyListenAddr), v.GetString(keyListenPort)
	ConfigDatabasePath = v.GetString(keyDatabase)

	jww.INFO.Printf("Sealed-bid auction server version %s", ConfigVersion)

	if Database, err = InitDatabase(); err != nil {
		return err
	}
	defer Database.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := bignum.NewEntropySource()
	keys, err := serverlib.GenerateServerKeys(ctx, v.GetInt(keyPrimeBits), src)
	if err != nil {
		return err
	}

	events := serverlib.NewChannelObserver(256)
	go logEvents(events)

	session, err := serverlib.NewSession(serverlib.Config{
		Rounds:      v.GetInt(keyRounds),
		AllowedIDs:  v.GetStringSlice(keyAllowedIDs),
		AuthOpen:    v.GetBool(keyAuthOpen),
		BiddingOpen: v.GetBool(keyBiddingOpen),
	}, keys, src, database.NewSQLStore(Database), events)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ConfigListenAddr + ":" + ConfigListenPort,
		Handler:           NewMux(serverlib.NewEndpoint(session), v.GetString(keyAdminToken)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		jww.INFO.Printf("Listening: %v", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		session.Shutdown()
		return err
	case <-ctx.Done():
	}

	jww.INFO.Print("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	session.Shutdown()
	return err
}

func logEvents(o *serverlib.ChannelObserver) {
	for e := range o.C {
		serverlib.LogObserver{}.Notify(e)
	}
}

func main() {
	app := &cli.App{
		Name:     "sealedbid-server",
		HelpName: "sealedbid-server",
		Version:  ConfigVersion,
		Usage:    "Sealed-bid auction server with zero-knowledge mutual authentication",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (yaml, json or toml)"},
			&cli.StringFlag{Name: keyListenAddr, Value: DefaultListenAddr, Usage: "listen address"},
			&cli.StringFlag{Name: keyListenPort, Value: DefaultListenPort, Usage: "listen port"},
			&cli.StringFlag{Name: keyDatabase, Value: ConfigDatabasePath, Usage: "sqlite audit log path"},
			&cli.IntFlag{Name: keyPrimeBits, Value: params.DefaultBits, Usage: "bit length of p and of each RSA prime"},
			&cli.IntFlag{Name: keyRounds, Value: ffs.DefaultRounds, Usage: "zero-knowledge rounds per direction"},
			&cli.StringSliceFlag{Name: keyAllowedIDs, Usage: "participant ids allowed to register, empty admits all"},
			&cli.StringFlag{Name: keyAdminToken, Usage: "token required in X-Admin-Token for admin endpoints"},
			&cli.StringFlag{Name: keyLogLevel, Value: DefaultLogLevel, Usage: "trace, debug, info, warn or error"},
			&cli.BoolFlag{Name: keyAuthOpen, Value: true, Usage: "open the authentication window at start"},
			&cli.BoolFlag{Name: keyBiddingOpen, Usage: "open the bidding window at start"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		jww.FATAL.Fatal(err)
	}
}
