package sync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/sync"
	_ "github.com/c5t/c5t/internal/vcs/git"
)

// This example shows a full export and push cycle.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	st, err := store.OpenSQLite("/home/me/.local/share/c5t/c5t.db")
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	c, err := sync.New(st, sync.Options{Dir: "/home/me/.local/share/c5t/sync"})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if _, err := c.Init(ctx, "git@example.com:me/c5t-data.git"); err != nil {
		log.Fatal(err)
	}

	res, err := c.Export(ctx, sync.ExportOptions{Push: true})
	if sync.IsRetryable(err) {
		fmt.Println("push failed, the commit is kept; try again later")
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("committed:", res.Committed, "push:", res.Push)
}

// This example shows pulling and applying another machine's changes.
func ExampleCoordinator_Import() {
	st := store.NewMemory()
	c, err := sync.New(st, sync.Options{Dir: "/tmp/c5t-sync"})
	if err != nil {
		log.Fatal(err)
	}

	res, err := c.Import(context.Background(), sync.ImportOptions{Pull: true})
	if err != nil {
		log.Fatal(err)
	}

	total := res.Summary.Totals()
	fmt.Printf("inserted %d, replaced %d, skipped %d\n", total.Inserted, total.Replaced, total.Skipped)
	for _, msg := range res.Summary.Messages() {
		fmt.Println(msg)
	}
}
