package e2e

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"

	"merch/e2e/steps/admin"
	"merch/e2e/steps/claim"
	"merch/e2e/steps/common"
	"merch/e2e/steps/companion"
)

var opts = godog.Options{
	Output: colors.Colored(os.Stdout),
	Format: "pretty",
	Paths:  []string{"features"},
}

func init() {
	godog.BindCommandLineFlags("godog.", &opts)
}

func TestFeatures(t *testing.T) {
	flag.Parse()
	opts.TestingT = t

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options:             &opts,
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	// Steps bind to a proxy so each scenario gets a fresh server behind it.
	proxy := &scenarioContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		proxy.TestContext = NewTestContext()
		return ctx, nil
	})

	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		if err != nil {
			fmt.Printf("Scenario failed: %s\nLast Response: %s\n", s.Name, string(proxy.LastResponseBody))
		}
		proxy.Close()
		return ctx, nil
	})

	common.RegisterSteps(sc, proxy)
	admin.RegisterSteps(sc, proxy)
	claim.RegisterSteps(sc, proxy)
	companion.RegisterSteps(sc, proxy)
}

type scenarioContext struct {
	*TestContext
}
