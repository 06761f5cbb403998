package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/hondana-app/hondana/pkg/cart"
	"github.com/hondana-app/hondana/pkg/config"
	"github.com/hondana-app/hondana/pkg/database"
	"github.com/hondana-app/hondana/pkg/eligibility"
	"github.com/hondana-app/hondana/pkg/libraryclient"
	"github.com/hondana-app/hondana/pkg/migrations"
	"github.com/hondana-app/hondana/pkg/mocklibrary"
	"github.com/hondana-app/hondana/pkg/reconciler"
	"github.com/hondana-app/hondana/pkg/version"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	app := &cli.App{
		Name:    "hondana",
		Usage:   "manage your borrow cart and submit borrow requests",
		Version: version.Version,
		Commands: []*cli.Command{
			cartCommand(cfg),
			borrowCommand(cfg),
			loginCommand(cfg),
			mockServerCommand(cfg, log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("command failed")
	}
}

// openCart opens the local database, brings it up to date, and returns the
// cart service. The caller owns closing the db.
func openCart(ctx context.Context, cfg *config.Config) (*cart.Service, *bun.DB, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	if _, err := migrations.BringUpToDate(ctx, db); err != nil {
		db.Close()
		return nil, nil, errors.WithStack(err)
	}

	return cart.NewService(db), db, nil
}

func newClient(cfg *config.Config) *libraryclient.Client {
	return libraryclient.New(libraryclient.Config{
		BaseURL:    cfg.APIBaseURL,
		Token:      cfg.APIToken,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
	})
}

func entryKind(c *cli.Context) string {
	if c.Bool("resource") {
		return cart.KindResource
	}
	return cart.KindItem
}

func parseCandidateIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one candidate id is required")
	}

	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			return nil, errors.Errorf("invalid candidate id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func cartCommand(cfg *config.Config) *cli.Command {
	resourceFlag := &cli.BoolFlag{
		Name:  "resource",
		Usage: "operate on the resource namespace instead of library items",
	}

	return &cli.Command{
		Name:  "cart",
		Usage: "manage the local borrow cart",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "add candidates to the cart",
				ArgsUsage: "ID [ID...]",
				Flags: []cli.Flag{
					resourceFlag,
					&cli.StringFlag{
						Name:  "title",
						Usage: "title to display for the candidate (single id only)",
					},
				},
				Action: func(c *cli.Context) error {
					ids, err := parseCandidateIDs(c.Args().Slice())
					if err != nil {
						return err
					}
					if c.String("title") != "" && len(ids) > 1 {
						return errors.New("--title only applies when adding a single candidate")
					}

					svc, db, err := openCart(c.Context, cfg)
					if err != nil {
						return err
					}
					defer db.Close()

					kind := entryKind(c)
					for _, id := range ids {
						entry, err := svc.AddEntry(c.Context, cart.AddEntryOptions{
							Kind:        kind,
							CandidateID: id,
							Title:       c.String("title"),
						})
						if err != nil {
							return err
						}
						fmt.Printf("Added %s %d at position %d\n", kind, entry.CandidateID, entry.Position)
					}
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "remove candidates from the cart",
				ArgsUsage: "ID [ID...]",
				Flags:     []cli.Flag{resourceFlag},
				Action: func(c *cli.Context) error {
					ids, err := parseCandidateIDs(c.Args().Slice())
					if err != nil {
						return err
					}

					svc, db, err := openCart(c.Context, cfg)
					if err != nil {
						return err
					}
					defer db.Close()

					kind := entryKind(c)
					for _, id := range ids {
						if err := svc.RemoveEntry(c.Context, kind, id); err != nil {
							return err
						}
						fmt.Printf("Removed %s %d\n", kind, id)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list the cart in selection order",
				Action: func(c *cli.Context) error {
					svc, db, err := openCart(c.Context, cfg)
					if err != nil {
						return err
					}
					defer db.Close()

					for _, kind := range []string{cart.KindItem, cart.KindResource} {
						entries, err := svc.ListEntries(c.Context, cart.ListEntriesOptions{Kind: kind})
						if err != nil {
							return err
						}
						if len(entries) == 0 {
							continue
						}

						fmt.Printf("%s:\n", kind)
						for _, entry := range entries {
							title := entry.Title
							if title == "" {
								title = "(no title)"
							}
							fmt.Printf("  %d. [%d] %s\n", entry.Position, entry.CandidateID, title)
						}
					}
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "empty a cart namespace",
				Flags: []cli.Flag{resourceFlag},
				Action: func(c *cli.Context) error {
					svc, db, err := openCart(c.Context, cfg)
					if err != nil {
						return err
					}
					defer db.Close()

					kind := entryKind(c)
					if err := svc.ClearEntries(c.Context, kind); err != nil {
						return err
					}
					fmt.Printf("Cleared %s cart\n", kind)
					return nil
				},
			},
		},
	}
}

var bucketLabels = []string{
	"Available to borrow",
	"Available to reserve",
	"Already borrowed",
	"Request already pending",
	"Already reserved",
}

func printSnapshot(snapshot *eligibility.Snapshot) {
	for i, bucket := range snapshot.Buckets() {
		if len(bucket) == 0 {
			continue
		}
		fmt.Printf("%s:\n", bucketLabels[i])
		for _, item := range bucket {
			fmt.Printf("  [%d] %s\n", item.ID, item.Title)
		}
	}
}

// openReconciler runs a fresh eligibility check over the cart's library
// items. A previous check's result is never reused.
func openReconciler(ctx context.Context, cfg *config.Config, svc *cart.Service) (*reconciler.Reconciler, error) {
	ids, err := svc.ItemIDs(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	client := newClient(cfg)
	r := reconciler.New(client, client)
	if err := r.Open(ctx, ids); err != nil {
		return nil, errors.WithStack(err)
	}
	return r, nil
}

func borrowCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "borrow",
		Usage: "check eligibility and submit borrow requests",
		Subcommands: []*cli.Command{
			{
				Name:  "check",
				Usage: "check the cart against the library's current state",
				Action: func(c *cli.Context) error {
					svc, db, err := openCart(c.Context, cfg)
					if err != nil {
						return err
					}
					defer db.Close()

					r, err := openReconciler(c.Context, cfg, svc)
					if err != nil {
						return err
					}
					defer r.Close()

					snapshot := r.Snapshot()
					if snapshot.Total() == 0 {
						fmt.Println("Your cart has no library items.")
						return nil
					}

					printSnapshot(snapshot)
					if r.Decision().IsAllowedBorrowRequest {
						fmt.Println("\nAll items are clear; you can submit a borrow request.")
					} else {
						fmt.Printf("\n%d item(s) block submission; remove them from the cart first.\n", snapshot.BlockedCount())
					}
					return nil
				},
			},
			{
				Name:  "submit",
				Usage: "re-check the cart and submit the borrow request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "note to attach to the borrow request",
					},
				},
				Action: func(c *cli.Context) error {
					svc, db, err := openCart(c.Context, cfg)
					if err != nil {
						return err
					}
					defer db.Close()

					r, err := openReconciler(c.Context, cfg, svc)
					if err != nil {
						return err
					}
					defer r.Close()

					snapshot := r.Snapshot()
					if snapshot.Total() == 0 {
						return errors.New("your cart has no library items")
					}

					message, err := r.Submit(c.Context, c.String("description"))
					if errors.Is(err, reconciler.ErrSubmissionBlocked) {
						printSnapshot(snapshot)
						return errors.Errorf("%d item(s) block submission; remove them from the cart first", snapshot.BlockedCount())
					}
					if err != nil {
						return err
					}

					// The backend accepted the request; reconcile the cart so
					// the submitted candidates don't linger for the next check.
					submitted := snapshot.BorrowRequest("")
					removed := make([]int, 0, len(submitted.LibraryItemIDs)+len(submitted.ReservationItemIDs))
					for _, id := range submitted.LibraryItemIDs {
						removed = append(removed, int(id))
					}
					for _, id := range submitted.ReservationItemIDs {
						removed = append(removed, int(id))
					}
					if err := svc.RemoveEntries(c.Context, cart.KindItem, removed); err != nil {
						return errors.Wrap(err, "borrow request submitted but the cart could not be updated")
					}

					fmt.Println(message)
					return nil
				},
			},
		},
	}
}

func loginCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "log in to the library backend and print a session token",
		ArgsUsage: "USERNAME PASSWORD",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("usage: hondana login USERNAME PASSWORD")
			}

			client := newClient(cfg)
			token, err := client.Login(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}

			fmt.Println(token)
			fmt.Fprintln(os.Stderr, "Set HONDANA_API_TOKEN or the api_token config key to use this token.")
			return nil
		},
	}
}

func mockServerCommand(cfg *config.Config, log logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "mock-server",
		Usage: "run the in-memory mock library backend",
		Action: func(c *cli.Context) error {
			store := mocklibrary.NewStore()
			if err := mocklibrary.Seed(store); err != nil {
				return err
			}

			srv, err := mocklibrary.NewServer(cfg, store)
			if err != nil {
				return err
			}

			graceful := signals.Setup()

			go func() {
				log.Info("mock library backend started", logger.Data{"addr": srv.Addr})
				err := srv.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Err(err).Fatal("server stopped")
				}
			}()

			<-graceful
			log.Info("starting graceful shutdown")

			if err := srv.Shutdown(c.Context); err != nil {
				log.Err(err).Error("server shutdown error")
			}
			log.Info("server shutdown")
			return nil
		},
	}
}
