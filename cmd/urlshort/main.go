package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ericfialkowski/urlshort/client"
)

func main() {
	const (
		minCount          = 2
		wrongArgs         = "shorten, stats or expand subcommand required"
		shortenSubcommand = "shorten"
		statsSubcommand   = "stats"
		expandSubcommand  = "expand"
		defaultServer     = "http://localhost:3000"
	)

	if len(os.Args) < minCount {
		exit(wrongArgs)
	}

	shortenSet := flag.NewFlagSet(shortenSubcommand, flag.ExitOnError)
	shortenAddr := shortenSet.String("a", defaultServer, "address of urlshort server")
	token := shortenSet.String("t", os.Getenv("TOKEN"), "access token, defaults to $TOKEN")
	id := shortenSet.String("id", "", "custom id, only valid with a single url")

	statsSet := flag.NewFlagSet(statsSubcommand, flag.ExitOnError)
	statsAddr := statsSet.String("a", defaultServer, "address of urlshort server")

	expandSet := flag.NewFlagSet(expandSubcommand, flag.ExitOnError)
	expandAddr := expandSet.String("a", defaultServer, "address of urlshort server")

	switch os.Args[1] {
	case shortenSubcommand:
		if err := shortenSet.Parse(os.Args[minCount:]); err != nil {
			exit(err)
		}
		if *id != "" && shortenSet.NArg() != 1 {
			exit("-id needs exactly one url")
		}

		shortenURLs(shortenSet.Args(), *id, client.New(client.WithServerAddress(*shortenAddr), client.WithToken(*token)))
	case statsSubcommand:
		if err := statsSet.Parse(os.Args[minCount:]); err != nil {
			exit(err)
		}

		printStats(statsSet.Args(), client.New(client.WithServerAddress(*statsAddr)))
	case expandSubcommand:
		if err := expandSet.Parse(os.Args[minCount:]); err != nil {
			exit(err)
		}

		expandIds(expandSet.Args(), client.New(client.WithServerAddress(*expandAddr)))
	default:
		exit(wrongArgs)
	}
}

func exit(msg any) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func shortenURLs(urls []string, id string, c *client.Client) {
	for _, url := range urls {
		link, err := c.Shorten(url, id)
		if err != nil {
			exit(err)
		}

		fmt.Printf("%s\t%s\n", link.Id, link.Url)
	}
}

func printStats(ids []string, c *client.Client) {
	for _, id := range ids {
		stats, err := c.Stats(id)
		if err != nil {
			exit(err)
		}

		fmt.Printf("%s\t%d\t%s\n", stats.Id, stats.Visits, stats.Url)
	}
}

func expandIds(ids []string, c *client.Client) {
	for _, id := range ids {
		url, err := c.Expand(id)
		if err != nil {
			exit(err)
		}

		fmt.Println(url)
	}
}
