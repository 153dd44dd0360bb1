package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wsgreco/sidica/pkg/client"
)

func main() {
	servers := flag.String("servers", "127.0.0.1:11211", "comma-separated server addresses")
	flag.Parse()

	c, err := client.New(client.Config{Servers: strings.Split(*servers, ",")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidica-cli: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "quit" || parts[0] == "exit" {
			return
		}
		run(context.Background(), c, parts[0], parts[1:])
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "sidica-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, command string, args []string) {
	var err error
	switch command {
	case "get":
		if len(args) < 1 {
			err = errors.New("usage: get <key> [key ...]")
			break
		}
		if len(args) == 1 {
			var item *client.Item
			if item, err = c.Get(ctx, args[0]); err == nil {
				fmt.Printf("%s (flags=%d cas=%d)\n", item.Data, item.Flags, item.CAS)
			}
			break
		}
		var items map[string]*client.Item
		if items, err = c.GetMulti(ctx, args); err == nil {
			for _, key := range args {
				if item, ok := items[key]; ok {
					fmt.Printf("%s: %s\n", key, item.Data)
				} else {
					fmt.Printf("%s: <miss>\n", key)
				}
			}
		}

	case "set", "add", "replace":
		var flagsArg, exp uint32
		if flagsArg, exp, err = storageArgs(args, 3); err != nil {
			err = fmt.Errorf("usage: %s <key> <value> [flags] [expiration]", command)
			break
		}
		data := []byte(args[1])
		switch command {
		case "set":
			err = c.Set(ctx, args[0], flagsArg, exp, data)
		case "add":
			err = c.Add(ctx, args[0], flagsArg, exp, data)
		case "replace":
			err = c.Replace(ctx, args[0], flagsArg, exp, data)
		}
		if err == nil {
			fmt.Println("stored")
		}

	case "cas":
		if len(args) != 3 {
			err = errors.New("usage: cas <key> <value> <cas>")
			break
		}
		var casID uint64
		if casID, err = strconv.ParseUint(args[2], 10, 64); err != nil {
			break
		}
		if err = c.CompareAndSwap(ctx, args[0], 0, 0, casID, []byte(args[1])); err == nil {
			fmt.Println("stored")
		}

	case "delete", "del":
		if len(args) != 1 {
			err = errors.New("usage: delete <key>")
			break
		}
		if err = c.Delete(ctx, args[0]); err == nil {
			fmt.Println("deleted")
		}

	case "incr", "decr":
		if len(args) != 2 {
			err = errors.New("usage: " + command + " <key> <delta>")
			break
		}
		var delta, v uint64
		if delta, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			break
		}
		if command == "incr" {
			v, err = c.Incr(ctx, args[0], delta)
		} else {
			v, err = c.Decr(ctx, args[0], delta)
		}
		if err == nil {
			fmt.Println(v)
		}

	case "touch":
		if len(args) != 2 {
			err = errors.New("usage: touch <key> <expiration>")
			break
		}
		var exp uint64
		if exp, err = strconv.ParseUint(args[1], 10, 32); err != nil {
			break
		}
		if err = c.Touch(ctx, args[0], uint32(exp)); err == nil {
			fmt.Println("touched")
		}

	case "help":
		fmt.Print(`commands:
  get <key> [key ...]
  set|add|replace <key> <value> [flags] [expiration]
  cas <key> <value> <cas>
  delete <key>
  incr|decr <key> <delta>
  touch <key> <expiration>
  quit
`)

	default:
		err = fmt.Errorf("unknown command %q, try help", command)
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// storageArgs parses the optional numeric tail of set/add/replace input.
func storageArgs(args []string, flagsAt int) (flags, expiration uint32, err error) {
	if len(args) < flagsAt-1 || len(args) > flagsAt+1 {
		return 0, 0, errors.New("wrong argument count")
	}
	if len(args) >= flagsAt {
		v, err := strconv.ParseUint(args[flagsAt-1], 10, 32)
		if err != nil {
			return 0, 0, err
		}
		flags = uint32(v)
	}
	if len(args) == flagsAt+1 {
		v, err := strconv.ParseUint(args[flagsAt], 10, 32)
		if err != nil {
			return 0, 0, err
		}
		expiration = uint32(v)
	}
	return flags, expiration, nil
}
