package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ctfer-io/chore-server/client"
	"github.com/ctfer-io/chore-server/pkg/fs"
)

type cliClientKey struct{}

func main() {
	cmd := &cli.Command{
		Name:  "chore-cli",
		Usage: "Read or replace the chore state of a chore-server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Sources: cli.EnvVars("CHORE_SERVER_URL"),
				Value:   "http://localhost:3000",
				Usage:   "The URL to reach out the chore-server instance.",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return context.WithValue(ctx, cliClientKey{}, client.New(cmd.String("url"), nil)), nil
		},
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print the stored chore state.",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cc := ctx.Value(cliClientKey{}).(*client.Client)
					return get(ctx, cc, cmd.Root().Writer)
				},
			}, {
				Name:      "put",
				Usage:     "Replace the stored chore state with a JSON object read from a file, or stdin if none or \"-\".",
				ArgsUsage: "[file]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cc := ctx.Value(cliClientKey{}).(*client.Client)
					return put(ctx, cc, cmd.Args().First(), cmd.Root().Reader, cmd.Root().Writer)
				},
			}, {
				Name:  "ping",
				Usage: "Check the server is alive.",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cc := ctx.Value(cliClientKey{}).(*client.Client)
					if err := cc.Alive(ctx); err != nil {
						return err
					}
					_, err := fmt.Fprintln(cmd.Root().Writer, "[+] chore-server is alive")
					return err
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[!] %s\n", err)
		os.Exit(1)
	}
}

func get(ctx context.Context, cc *client.Client, w io.Writer) error {
	doc, err := cc.Fetch(ctx)
	if err != nil {
		return err
	}
	b, err := doc.Indent()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func put(ctx context.Context, cc *client.Client, file string, stdin io.Reader, w io.Writer) error {
	var (
		b   []byte
		err error
	)
	if file == "" || file == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(file)
	}
	if err != nil {
		return err
	}

	doc, err := fs.ParseDocument(b)
	if err != nil {
		return err
	}
	if err := cc.Replace(ctx, doc); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "[~] Chore state replaced (%d bytes)\n", len(doc))
	return err
}
