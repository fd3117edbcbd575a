// Command claim claims a GeoDrop NFT from the command line.
//
//	claim -server http://localhost:8080 -token 0 -address 0x... -lat 40.758 -lng -73.9855
//
// The drop's position is fetched from the server and checked against the
// hint radius first; out-of-range claims are not sent unless -force is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/samirrijal/geodrop/internal/client"
	"github.com/samirrijal/geodrop/internal/core/domain"
)

func main() {
	var (
		server  = flag.String("server", envOr("GEODROP_SERVER", "http://localhost:8080"), "GeoDrop API base URL")
		token   = flag.String("token", "", "token ID of the drop")
		address = flag.String("address", "", "wallet address that receives the NFT")
		lat     = flag.Float64("lat", 0, "your latitude")
		lng     = flag.Float64("lng", 0, "your longitude")
		force   = flag.Bool("force", false, "send the claim even when the hint says you are out of range")
		timeout = flag.Duration("timeout", 60*time.Second, "overall request timeout")
	)
	flag.Parse()

	if *token == "" || *address == "" {
		flag.Usage()
		os.Exit(2)
	}
	position := domain.Coordinate{Lat: *lat, Lng: *lng}
	if err := position.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid position: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	os.Exit(run(ctx, client.New(*server, *timeout), *token, *address, position, *force))
}

func run(ctx context.Context, c *client.Client, token, address string, position domain.Coordinate, force bool) int {
	policies, err := c.Policy(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, client.Explain(err))
		return 1
	}

	hint, asset, err := c.Hint(ctx, token, position, policies.Hint)
	if err != nil {
		fmt.Fprintln(os.Stderr, client.Explain(err))
		return 1
	}
	fmt.Printf("%s is %.2f %s away (hint radius %s)\n", displayName(asset), hint.Distance, hint.Unit, policies.Hint.String())

	if !hint.Eligible && !force {
		fmt.Fprintln(os.Stderr, client.Explain(domain.ErrOutOfRange))
		return 1
	}

	result, err := c.Claim(ctx, client.ClaimInput{
		AssetID:   token,
		Recipient: address,
		Position:  position,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, client.Explain(err))
		var respErr *client.ResponseError
		if errors.As(err, &respErr) && respErr.Message != "" {
			fmt.Fprintf(os.Stderr, "(server said: %s)\n", respErr.Message)
		}
		return 1
	}

	fmt.Println("Claim accepted. The NFT is on its way to your wallet.")
	fmt.Println(string(result))
	return 0
}

func displayName(a *domain.Asset) string {
	if a.Name != "" {
		return a.Name
	}
	return "Drop " + a.ID
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
