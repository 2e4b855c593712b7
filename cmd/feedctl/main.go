package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/apportion"
	"github.com/steemit/feedclient/internal/cache"
	"github.com/steemit/feedclient/internal/feed"
	"github.com/steemit/feedclient/internal/list"
	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/remote"
	"github.com/steemit/feedclient/internal/store"
	"github.com/steemit/feedclient/pkg/config"
	"github.com/steemit/feedclient/pkg/logging"
)

var (
	ErrUnknownVariant = errors.New("unknown feed variant")
	ErrUnknownKind    = errors.New("unknown list kind")
	ErrNoPercentages  = errors.New("values do not apportion")
)

// app holds the components a command runs against
type app struct {
	cfg    *config.Config
	cache  *cache.Cache
	client *remote.Client
	logger *zap.Logger
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
	}

	client, err := remote.New(&cfg.API,
		remote.WithSearchCache(cfg.Search.CacheSize, cfg.Search.CacheTTL),
		remote.WithStatsCache(redisCache, cfg.Redis.StatsTTL),
	)
	if err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("failed to initialize feed API client: %w", err)
	}

	return &app{cfg: cfg, cache: redisCache, client: client, logger: logging.WithComponent("feedctl")}, nil
}

func (a *app) close() {
	a.cache.Close()
	_ = a.logger.Sync()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := &cli.Command{
		Name:  "feedctl",
		Usage: "Inspect feeds, user lists and statistics through the feed client cache",
		Commands: []*cli.Command{
			{
				Name:  "feed",
				Usage: "Page through a feed",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "variant",
						Aliases: []string{"v"},
						Value:   string(models.FeedGlobal),
						Usage:   "Feed variant (home, global or profile)",
					},
					&cli.IntFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Author id for the profile feed",
					},
					&cli.IntFlag{
						Name:    "pages",
						Aliases: []string{"p"},
						Value:   1,
						Usage:   "Number of pages to load",
					},
				},
				Action: withApp(runFeed),
			},
			{
				Name:  "list",
				Usage: "Page through a user list",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Value:   string(list.KindFollowing),
						Usage:   "List kind (following, mutuals, friends or search)",
					},
					&cli.IntFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Owner of the list, defaults to the configured viewer",
					},
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Username prefix for search",
					},
					&cli.IntFlag{
						Name:    "pages",
						Aliases: []string{"p"},
						Value:   1,
						Usage:   "Number of pages to load",
					},
				},
				Action: withApp(runList),
			},
			{
				Name:  "stats",
				Usage: "Show app statistics",
				Action: withApp(func(ctx context.Context, a *app, _ *cli.Command) error {
					stats, err := a.client.GetAppStatistics(ctx)
					if err != nil {
						return err
					}
					return printJSON(stats)
				}),
			},
			{
				Name:      "poll",
				Usage:     "Round poll option values to whole percentages",
				ArgsUsage: "<value>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "votes",
						Usage: "Treat the values as raw vote counts",
					},
				},
				Action: runPoll,
			},
		},
	}

	return cmd.Run(context.Background(), os.Args)
}

func withApp(fn func(ctx context.Context, a *app, c *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a, c)
	}
}

func runFeed(ctx context.Context, a *app, c *cli.Command) error {
	variant := models.FeedVariant(c.String("variant"))
	if !variant.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
	userID := c.Int("user")

	feeds := feed.NewController(store.New(a.client), a.cfg.Feed.PageSize)
	if err := feeds.Refresh(ctx, variant, userID); err != nil {
		return err
	}
	for page := int64(1); page < c.Int("pages") && feeds.HasMore(variant, userID); page++ {
		if err := feeds.LoadMore(ctx, variant, userID); err != nil {
			return err
		}
	}

	a.logger.Debug("Feed loaded",
		zap.String("feed", feed.NewKey(variant, userID).String()),
		zap.Int("posts", len(feeds.IDs(variant, userID))))

	return printJSON(feeds.Posts(variant, userID))
}

func runList(ctx context.Context, a *app, c *cli.Command) error {
	userID := c.Int("user")
	if userID == 0 {
		userID = a.cfg.API.ViewerID
	}
	pageSize := a.cfg.Lists.PageSize

	var l *list.UserList
	switch list.Kind(c.String("kind")) {
	case list.KindFollowing:
		l = list.NewFollowing(a.client, userID, pageSize)
	case list.KindMutuals:
		l = list.NewMutuals(a.client, userID, pageSize)
	case list.KindFriends:
		l = list.NewFriends(a.client, userID, pageSize)
	case list.KindSearch:
		l = list.NewSearch(a.client, c.String("prefix"), pageSize)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, c.String("kind"))
	}

	if err := l.Load(ctx, true); err != nil {
		return err
	}
	for page := int64(1); page < c.Int("pages") && l.HasMore(); page++ {
		if err := l.Load(ctx, false); err != nil {
			return err
		}
	}

	return printJSON(l.Items())
}

func runPoll(_ context.Context, c *cli.Command) error {
	args := c.Args().Slice()

	var (
		result []int
		ok     bool
	)
	if c.Bool("votes") {
		counts := make([]int, len(args))
		for i, arg := range args {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid vote count %q: %w", arg, err)
			}
			counts[i] = n
		}
		result, ok = apportion.Shares(counts)
	} else {
		values := make([]float64, len(args))
		for i, arg := range args {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid percentage %q: %w", arg, err)
			}
			values[i] = f
		}
		result, ok = apportion.Apportion(values)
	}
	if !ok {
		return ErrNoPercentages
	}

	return printJSON(result)
}

func printJSON(v interface{}) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
