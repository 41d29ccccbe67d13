package lattice_test

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
)

func Example() {
	ctx := context.Background()
	driver := memory.NewDriver(
		memory.WithQuery("MATCH (p:Person) RETURN p.name AS name",
			domain.NewRecord([]string{"name"}, domain.String("ada")),
			domain.NewRecord([]string{"name"}, domain.String("grace")),
		),
	)

	client := lattice.New(driver)
	defer client.Close(ctx)

	cur, err := client.Run(ctx, "MATCH (p:Person) RETURN p.name AS name", nil)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for rec, err := range cur.All(ctx) {
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		name, _ := rec.Get("name")
		fmt.Println(name)
	}
	fmt.Println("open sessions:", driver.OpenSessions())

	// Output:
	// ada
	// grace
	// open sessions: 0
}

func ExampleClient_RunManual() {
	ctx := context.Background()
	driver := memory.NewDriver(memory.WithQuery("RETURN 1", domain.NewRecord([]string{"1"}, domain.Int(1))))
	client := lattice.New(driver)

	_, id, err := client.RunManual(ctx, "RETURN 1", nil)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("first release:", client.Release(ctx, id))
	fmt.Println("second release not found:", client.Release(ctx, id) != nil)

	// Output:
	// first release: <nil>
	// second release not found: true
}
