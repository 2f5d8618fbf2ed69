package admin

import (
	"context"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body interface{}, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetAdminToken() string
}

// RegisterSteps registers admin-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	ctx.Step(`^I seed the code "([^"]*)" as admin$`, steps.seedCode)
	ctx.Step(`^I list the codes as admin$`, steps.listCodes)
	ctx.Step(`^I list the codes without the admin token$`, steps.listCodesWithoutToken)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) headers() map[string]string {
	return map[string]string{
		"X-Admin-Token":    s.tc.GetAdminToken(),
		"X-Admin-Actor-ID": "e2e@example.com",
	}
}

func (s *adminSteps) seedCode(_ context.Context, code string) error {
	return s.tc.POSTWithHeaders("/admin/codes", map[string]interface{}{
		"codes": []map[string]interface{}{{"code": code}},
	}, s.headers())
}

func (s *adminSteps) listCodes(context.Context) error {
	return s.tc.GET("/admin/codes", s.headers())
}

func (s *adminSteps) listCodesWithoutToken(context.Context) error {
	return s.tc.GET("/admin/codes", nil)
}
