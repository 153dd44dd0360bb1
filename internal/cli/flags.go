package cli

import (
	"flag"

	"github.com/wsgreco/sidica/internal/cache"
	"github.com/wsgreco/sidica/internal/server"
)

type options struct {
	listenAddr    string
	shards        int
	maxFrameBytes int
	verbose       bool
	showVersion   bool
}

func parseFlags(args []string) (options, error) {
	opt := options{}
	fs := flag.NewFlagSet("sidica", flag.ContinueOnError)
	fs.StringVar(&opt.listenAddr, "listen", "127.0.0.1:11211", "TCP address to listen on")
	fs.IntVar(&opt.shards, "shards", cache.DefaultShards, "record map shard count (rounded up to a power of two)")
	fs.IntVar(&opt.maxFrameBytes, "max-frame-bytes", server.DefaultMaxFrameBytes, "max buffered bytes per frame before the connection is dropped")
	fs.BoolVar(&opt.verbose, "verbose", false, "verbose logging")
	fs.BoolVar(&opt.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	return opt, nil
}
