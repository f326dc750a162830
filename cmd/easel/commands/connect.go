package commands

import (
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/easelhq/easel/internal/printer"
	"github.com/easelhq/easel/pkg/board"
)

// connection bundles the per-command clients. Commands connect lazily so
// offline commands (like replay) need no Redis at all.
type connection struct {
	instanceName string
	redisOpts    *redis.Options
	board        *board.Client
}

// connect resolves the target instance from the environment and opens a
// board client against it.
func connect() (*connection, error) {
	instanceName := os.Getenv("EASEL_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")
	if instanceName == "" || redisURL == "" {
		return nil, printer.Error(
			"no target instance",
			"EASEL_INSTANCE_NAME and REDIS_URL must be set to reach an easel instance.",
			[]string{
				"export EASEL_INSTANCE_NAME=<name>",
				"export REDIS_URL=redis://localhost:6379",
			},
		)
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid REDIS_URL",
			err.Error(),
			[]string{"Use a URL of the form redis://host:port"},
		)
	}

	boardClient, err := board.NewClient(redisOpts, instanceName)
	if err != nil {
		return nil, err
	}

	return &connection{
		instanceName: instanceName,
		redisOpts:    redisOpts,
		board:        boardClient,
	}, nil
}

func (c *connection) Close() {
	c.board.Close()
}
