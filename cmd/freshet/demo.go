package main

import (
	"fmt"
	"time"

	"github.com/freshet/freshet/internal/service"
)

// registerDemoPages installs the built-in example app. Replace these with
// your own pages when embedding the engine.
func registerDemoPages(pages *service.PageRegistry) {
	pages.Register("dashboard", dashboardPage)
	pages.Register("about", aboutPage)
}

func dashboardPage(app *service.App) error {
	side := app.Sidebar()
	side.Heading("Controls", 2)
	name, err := side.TextInput("Your name", "world", service.WithKey("name"))
	if err != nil {
		return err
	}
	verbose, err := side.Checkbox("Verbose output", false, service.WithKey("verbose"))
	if err != nil {
		return err
	}

	app.Heading("Freshet demo", 1)
	app.Markdown(fmt.Sprintf("Hello, **%s**!", name))

	level, err := app.Slider("Detail level", 0, 10, 3)
	if err != nil {
		return err
	}
	mode, err := app.Radio("Mode", []string{"compact", "full"})
	if err != nil {
		return err
	}
	if verbose {
		app.Text(fmt.Sprintf("mode=%s level=%d", mode, level))
	}

	cols := app.Columns(2)
	cols[0].Metric("Detail level", fmt.Sprintf("%d", level), "")
	cols[1].Metric("Mode", mode, "")

	// Only this block reruns when its button is clicked.
	err = app.Fragment("clock", func(f *service.App) error {
		f.Text("Rendered at " + time.Now().Format(time.RFC3339))
		refresh, err := f.Button("Refresh clock")
		if err != nil {
			return err
		}
		if refresh {
			f.RerunFragment()
		}
		return nil
	})
	if err != nil {
		return err
	}

	details := app.Expander("Raw state")
	details.JSON(fmt.Sprintf(`{"name":%q,"level":%d,"mode":%q}`, name, level, mode))

	return nil
}

func aboutPage(app *service.App) error {
	app.Heading("About", 1)
	app.Markdown("A reactive script server: the page function reruns from the top on every interaction.")
	return nil
}
