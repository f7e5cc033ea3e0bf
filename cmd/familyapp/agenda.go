package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/config"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/rolling"
	"github.com/samber/mo"
)

func agenda(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("agenda", flag.ExitOnError)
	baseURL := fs.String("url", "http://localhost:"+cfg.Port, "server base URL")
	familyID := fs.Int64("family", 0, "family id")
	memberID := fs.Int64("member", 0, "only show occurrences for this member")
	token := fs.String("token", os.Getenv("FAMILYAPP_TOKEN"), "device token")
	pages := fs.Int("pages", 1, "number of pages to load")
	from := fs.String("from", "", "first date (YYYY-MM-DD), default today")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *familyID == 0 || *token == "" {
		return errors.New("-family and -token are required")
	}

	filter := rolling.Filter{Start: recurrence.DateOf(time.Now(), time.Local)}
	if *from != "" {
		d, err := recurrence.ParseDate(*from)
		if err != nil {
			return fmt.Errorf("-from: %w", err)
		}
		filter.Start = d
	}
	if *memberID != 0 {
		filter.MemberID = mo.Some(*memberID)
	}

	feed := rolling.NewFeed(rolling.NewHTTPSource(*baseURL, *familyID, *token), cfg.FeedPageDays, 0, nil)
	defer feed.Close()
	feed.SetFilter(filter)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := 0; i < *pages; i++ {
		if err := feed.Load(ctx); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range feed.Entries() {
		when := "all day"
		if !e.AllDay {
			when = e.Start.Local().Format("15:04")
		}
		mark := ""
		if e.IsTask {
			mark = "[ ]"
			if e.Completed {
				mark = "[x]"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Date, when, mark, e.Title, e.Status)
	}
	if through, ok := feed.LoadedThrough(); ok {
		fmt.Fprintf(tw, "\nthrough %s\n", recurrence.FormatDate(through))
	}
	return tw.Flush()
}
