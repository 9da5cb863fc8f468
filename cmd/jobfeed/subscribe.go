package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/subscription"
)

var subFlags struct {
	email     string
	phone     string
	channels  []string
	cadence   string
	regions   []string
	sectors   []string
	companies []string
	types     []string
	keywords  []string
	minSalary int
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Create a subscription and send its verification code",
	RunE:  runSubscribe,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <subscription-id> <code>",
	Short: "Verify a subscription",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <token>",
	Short: "Deactivate the subscription owning token",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnsubscribe,
}

func init() {
	f := subscribeCmd.Flags()
	f.StringVar(&subFlags.email, "email", "", "email address")
	f.StringVar(&subFlags.phone, "phone", "", "phone number for SMS")
	f.StringSliceVar(&subFlags.channels, "channel", []string{string(model.ChannelEmail)}, "delivery channels (email, sms)")
	f.StringVar(&subFlags.cadence, "cadence", string(model.CadenceDaily), "immediate, daily or weekly")
	f.StringSliceVar(&subFlags.regions, "region", nil, "province codes, e.g. AB,BC")
	f.StringSliceVar(&subFlags.sectors, "sector", nil, "sectors, e.g. oil_gas,mining")
	f.StringSliceVar(&subFlags.companies, "company", nil, "company names")
	f.StringSliceVar(&subFlags.types, "type", nil, "employment types, e.g. full_time")
	f.StringSliceVar(&subFlags.keywords, "keyword", nil, "title or description keywords")
	f.IntVar(&subFlags.minSalary, "min-salary", 0, "minimum annual salary")

	rootCmd.AddCommand(subscribeCmd, verifyCmd, unsubscribeCmd)
}

func subscriptionService(ctx context.Context) (*subscription.Service, *app) {
	cfg, logger := mustLoad()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	return subscription.NewService(a.store, a.sender, logger), a
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, a := subscriptionService(ctx)
	defer a.Close()

	req := subscription.Request{
		Email:   subFlags.email,
		Phone:   subFlags.phone,
		Cadence: model.Cadence(subFlags.cadence),
		Filters: model.Filters{
			Regions:         subFlags.regions,
			Sectors:         subFlags.sectors,
			Companies:       subFlags.companies,
			EmploymentTypes: subFlags.types,
			Keywords:        subFlags.keywords,
		},
	}
	for _, ch := range subFlags.channels {
		req.Channels = append(req.Channels, model.Channel(ch))
	}
	if subFlags.minSalary > 0 {
		req.Filters.MinSalary = &subFlags.minSalary
	}

	sub, err := svc.Subscribe(ctx, req)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	fmt.Printf("subscription %s created, verification code sent\n", sub.ID)
	fmt.Printf("unsubscribe token: %s\n", sub.UnsubscribeToken)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, a := subscriptionService(ctx)
	defer a.Close()

	if err := svc.Verify(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Println("subscription verified")
	return nil
}

func runUnsubscribe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, a := subscriptionService(ctx)
	defer a.Close()

	if err := svc.Unsubscribe(ctx, args[0]); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	fmt.Println("unsubscribed")
	return nil
}
