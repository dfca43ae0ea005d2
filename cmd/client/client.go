package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/clientlib"
	"github.com/CamberLoid/sealedbid/internal/gost"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	"github.com/kr/pretty"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/urfave/cli/v2"
)

var (
	ConfigVersion = "indev"
)

var (
	serverFlag = &cli.StringFlag{
		Name: "server", Aliases: []string{"s"}, Value: clientlib.DefaultServerURL,
		EnvVars: []string{"AUCTION_SERVER"}, Usage: "auction server URL",
	}
	idFlag = &cli.StringFlag{
		Name: "id", Required: true, EnvVars: []string{"AUCTION_ID"}, Usage: "participant id",
	}
	dbFlag = &cli.StringFlag{
		Name: "db", Value: clientlib.ConfigDatabasePath, Usage: "local bid record, :memory: disables it",
	}
)

func transport(c *cli.Context) (*clientlib.HTTPTransport, error) {
	return clientlib.NewHTTPTransport(c.String("server"))
}

func openDatabase(c *cli.Context) (*clientlib.Client, error) {
	clientlib.ConfigDatabasePath = c.String("db")
	if clientlib.ConfigDatabasePath == ":memory:" {
		return &clientlib.Client{}, nil
	}
	db, err := clientlib.InitDatabase()
	if err != nil {
		return nil, err
	}
	return &clientlib.Client{Database: db}, nil
}

// --- 命令部分 --- //

func hashAction(c *cli.Context) error {
	var msg []byte
	var err error
	if c.NArg() == 0 {
		if msg, err = io.ReadAll(os.Stdin); err != nil {
			return err
		}
	} else {
		msg = []byte(strings.Join(c.Args().Slice(), " "))
	}
	sum := gost.Sum(msg)
	fmt.Println(hex.EncodeToString(sum[:]))
	return nil
}

func paramsAction(c *cli.Context) error {
	dp, err := params.Generate(context.Background(), c.Int("bits"), bignum.NewEntropySource())
	if err != nil {
		return err
	}
	fmt.Printf("%# v\n", pretty.Formatter(dp))
	return nil
}

func joinAction(c *cli.Context) error {
	value, ok := new(big.Int).SetString(c.String("value"), 10)
	if !ok {
		return misc.Reject(misc.ErrInvalidParameter, "bid value %q is not a decimal integer", c.String("value"))
	}
	t, err := transport(c)
	if err != nil {
		return err
	}
	local, err := openDatabase(c)
	if err != nil {
		return err
	}
	client, err := clientlib.NewClient(t, c.String("id"), bignum.NewEntropySource(), local.Database)
	if err != nil {
		return err
	}
	if err = client.Authenticate(); err != nil {
		return err
	}

	var sb *clientlib.SealedBid
	if tamper := c.String("tamper"); tamper != "" {
		sent, ok := new(big.Int).SetString(tamper, 10)
		if !ok {
			return misc.Reject(misc.ErrInvalidParameter, "tampered value %q is not a decimal integer", tamper)
		}
		sb, err = client.Participant.ForgeBid(value, sent)
	} else {
		sb, err = client.Participant.SealBid(value)
	}
	if err != nil {
		return err
	}
	sb.Disclose = c.Bool("disclose")

	id, err := client.Submit(sb)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func stateAction(c *cli.Context) error {
	t, err := transport(c)
	if err != nil {
		return err
	}
	resp, err := t.State(&restfulpayload.StateReq{ID: c.String("id")})
	if err != nil {
		return err
	}
	fmt.Println(resp.State)
	return nil
}

func bidsAction(c *cli.Context) error {
	t, err := transport(c)
	if err != nil {
		return err
	}
	pub, err := t.Bids()
	if err != nil {
		return err
	}
	for _, b := range pub.Bids {
		fmt.Printf("%s\ty=%s\tr=%s\ts=%s\n", b.ID, b.Y.Int(), b.R.Int(), b.S.Int())
	}
	return nil
}

func resultsAction(c *cli.Context) error {
	t, err := transport(c)
	if err != nil {
		return err
	}
	res, err := t.Results()
	if err != nil {
		return err
	}
	fmt.Printf("%# v\n", pretty.Formatter(res))
	return nil
}

func ownAction(c *cli.Context) error {
	local, err := openDatabase(c)
	if err != nil {
		return err
	}
	if local.Database == nil {
		return errors.New("no local record with --db :memory:")
	}
	defer local.Database.Close()
	local.Participant = &clientlib.Participant{ID: c.String("id")}
	own, err := local.OwnBids()
	if err != nil {
		return err
	}
	for _, b := range own {
		fmt.Printf("%s\tsession=%s\tvalue=%s\n", b.UUID, b.Session, b.Value)
	}
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "sealedbid",
		HelpName: "sealedbid-client",
		Version:  ConfigVersion,
		Usage:    "Participant client for the sealed-bid auction",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "debug logging"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				jww.SetLogThreshold(jww.LevelDebug)
				jww.SetStdoutThreshold(jww.LevelDebug)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "hash",
				Usage:     "GOST R 34.11-94 digest of the arguments or of stdin",
				ArgsUsage: "[text...]",
				Action:    hashAction,
			},
			{
				Name:  "params",
				Usage: "generate GOST R 34.10-94 domain parameters (p, q, a)",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "bits", Value: params.DefaultBits, Usage: "bit length of p"},
				},
				Action: paramsAction,
			},
			{
				Name:  "join",
				Usage: "register, authenticate both ways and submit a sealed bid",
				Flags: []cli.Flag{
					serverFlag, idFlag, dbFlag,
					&cli.StringFlag{Name: "value", Required: true, Usage: "bid value, 0 < value < n"},
					&cli.StringFlag{Name: "tamper", Usage: "send this value's ciphertext under the signature of --value"},
					&cli.BoolFlag{Name: "disclose", Usage: "also send the plaintext value for audit"},
				},
				Action: joinAction,
			},
			{
				Name:   "state",
				Usage:  "show the participant's state on the server",
				Flags:  []cli.Flag{serverFlag, idFlag},
				Action: stateAction,
			},
			{
				Name:   "bids",
				Usage:  "list the published encrypted bids",
				Flags:  []cli.Flag{serverFlag},
				Action: bidsAction,
			},
			{
				Name:   "results",
				Usage:  "show the published results",
				Flags:  []cli.Flag{serverFlag},
				Action: resultsAction,
			},
			{
				Name:   "own",
				Usage:  "list bids recorded locally",
				Flags:  []cli.Flag{idFlag, dbFlag},
				Action: ownAction,
			},
		},
	}
}

// CLI
func main() {
	if err := newApp().Run(os.Args); err != nil {
		jww.FATAL.Fatal(err)
	}
}
