package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/mmcdole/mediacenter/internal/domain"
	"github.com/mmcdole/mediacenter/internal/input"
	"github.com/mmcdole/mediacenter/internal/provider"
	"github.com/mmcdole/mediacenter/internal/provider/local"
	"github.com/mmcdole/mediacenter/internal/tui/styles"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                        \r"

var videoExtensions = map[string]bool{
	".avi": true, ".m2ts": true, ".m4v": true, ".mkv": true, ".mov": true,
	".mp4": true, ".mpg": true, ".ts": true, ".webm": true, ".wmv": true,
}

func runPaths(ctx context.Context, a *app, args []string) error {
	var rows [][]string
	for _, r := range a.paths.All() {
		rows = append(rows, []string{r.Name, r.Dir})
	}
	fmt.Println(styles.Table([]string{"NAME", "DIRECTORY"}, rows))
	return nil
}

func runProviders(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("providers", flag.ContinueOnError)
	match := fs.String("match", "", "suggest provider kinds close to q")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *match != "" {
		suggestions := a.registry.Suggest(*match)
		if len(suggestions) == 0 {
			fmt.Println(styles.DimStyle.Render("no matching providers"))
		}
		for _, kind := range suggestions {
			fmt.Println(kind)
		}
		return nil
	}

	var rows [][]string
	for _, d := range a.registry.Sorted() {
		rows = append(rows, []string{
			d.Kind,
			strconv.Itoa(d.EffectivePriority()),
			yesNo(d.Slow),
			yesNo(d.RequiresInternet),
			supportedTypes(d.SupportedTypes),
		})
	}
	fmt.Println(styles.Table([]string{"KIND", "PRIORITY", "SLOW", "INTERNET", "TYPES"}, rows))
	if !a.cfg.Metadata.AllowInternetProviders {
		fmt.Println(styles.WarningStyle.Render("internet providers are disabled"))
	}
	return nil
}

func supportedTypes(types []provider.TypeSupport) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		s := t.Kind.String()
		if t.IncludeSubtypes {
			s += "+"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func runImport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	kindName := fs.String("kind", "", "item kind (default: guessed from the path)")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	var forced domain.ItemKind
	if *kindName != "" {
		k, ok := domain.ParseItemKind(*kindName)
		if !ok {
			return fmt.Errorf("unknown item kind %q", *kindName)
		}
		forced = k
	}

	var rows [][]string
	for _, arg := range fs.Args() {
		path, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		if existing, err := a.store.FindByPath(ctx, path); err == nil {
			rows = append(rows, []string{shortID(existing.ID), existing.Kind.String(), path, styles.DimStyle.Render("exists")})
			continue
		} else if !errors.Is(err, domain.ErrItemNotFound) {
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		kind, ok := guessKind(path, info.IsDir())
		if *kindName != "" {
			kind, ok = forced, true
		}
		if !ok {
			rows = append(rows, []string{"", "", path, styles.WarningStyle.Render("skipped")})
			continue
		}

		name := filepath.Base(path)
		if !info.IsDir() {
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		item := domain.NewItem(kind, path, name)
		if err := a.store.SaveItem(ctx, item); err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}
		a.logger.Info("imported item", "item", item.ID, "kind", kind.String(), "path", path)
		rows = append(rows, []string{shortID(item.ID), kind.String(), path, styles.SuccessStyle.Render("imported")})
	}
	fmt.Println(styles.Table([]string{"ID", "KIND", "PATH", "STATUS"}, rows))
	return nil
}

// guessKind maps a path to an item kind; ok is false for unsupported files.
func guessKind(path string, isDir bool) (domain.ItemKind, bool) {
	name := filepath.Base(path)
	if isDir {
		parsed := local.ParseName(name)
		switch {
		case parsed.Season > 0 && parsed.Episode == 0:
			return domain.KindSeason, true
		case parsed.Year > 0:
			return domain.KindMovie, true
		}
		return domain.KindFolder, true
	}
	if !videoExtensions[strings.ToLower(filepath.Ext(name))] {
		return domain.KindItem, false
	}
	if local.ParseName(strings.TrimSuffix(name, filepath.Ext(name))).Episode > 0 {
		return domain.KindEpisode, true
	}
	return domain.KindMovie, true
}

func runItems(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("items", flag.ContinueOnError)
	filter := fs.String("filter", "", "fuzzy filter on title, name or path")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	items, err := a.store.ListItems(ctx, *filter)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(styles.DimStyle.Render("no items"))
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		year := ""
		if item.Year > 0 {
			year = strconv.Itoa(item.Year)
		}
		res := ""
		if item.MediaInfo != nil {
			res = item.MediaInfo.Resolution()
		}
		rows = append(rows, []string{
			shortID(item.ID),
			item.Kind.String(),
			styles.Truncate(item.DisplayTitle(), 40),
			year,
			res,
			item.Path,
		})
	}
	fmt.Println(styles.Table([]string{"ID", "KIND", "TITLE", "YEAR", "VIDEO", "PATH"}, rows))
	return nil
}

func runRefresh(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	force := fs.Bool("force", false, "discard existing metadata and run every provider")
	fast := fs.Bool("fast", false, "skip slow and internet providers")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var opts domain.RefreshOptions
	if *force {
		opts |= domain.RefreshForce
	}
	if *fast {
		opts |= domain.RefreshFastOnly
	}

	items, err := resolveItems(ctx, a, fs.Args())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(styles.DimStyle.Render("no items"))
		return nil
	}

	var results map[uuid.UUID]bool
	label := fmt.Sprintf("Refreshing %d item(s)...", len(items))
	refreshErr := withSpinner(ctx, label, func() error {
		var err error
		results, err = a.refresher.RefreshAll(ctx, items, opts)
		return err
	})

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := styles.ErrorStyle.Render("failed")
		if changed, ok := results[item.ID]; ok {
			status = styles.DimStyle.Render("unchanged")
			if changed {
				status = styles.SuccessStyle.Render("updated")
			}
		}
		rows = append(rows, []string{shortID(item.ID), styles.Truncate(item.DisplayTitle(), 40), status})
	}
	fmt.Println(styles.Table([]string{"ID", "TITLE", "STATUS"}, rows))
	return refreshErr
}

// resolveItems looks up each argument as an id, then as a path. No arguments
// selects every item.
func resolveItems(ctx context.Context, a *app, args []string) ([]*domain.Item, error) {
	if len(args) == 0 {
		return a.store.ListItems(ctx, "")
	}
	items := make([]*domain.Item, 0, len(args))
	for _, arg := range args {
		if id, err := uuid.Parse(arg); err == nil {
			item, err := a.store.GetItem(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", arg, err)
			}
			items = append(items, item)
			continue
		}
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		item, err := a.store.FindByPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// withSpinner runs fn while animating label on an interactive stdout.
func withSpinner(ctx context.Context, label string, fn func() error) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fn()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	// Spinner animation
	frame := 0
	fmt.Printf("\r%s %s", styles.AccentStyle.Render(styles.SpinnerFrames[frame]), label)

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Print(clearSpinnerLine)
			return err
		case <-ticker.C:
			frame++
			fmt.Printf("\r%s %s", styles.AccentStyle.Render(styles.SpinnerFrames[frame%len(styles.SpinnerFrames)]), label)
		case <-ctx.Done():
			// fn observes ctx; wait for it to unwind
			err := <-done
			fmt.Print(clearSpinnerLine)
			return err
		}
	}
}

func runWatchInput(ctx context.Context, a *app, args []string) error {
	queue := input.NewQueue(a.logger)
	defer queue.Close()

	hooks := input.NewTerminalHooks(ctx)
	mouse := input.NewRegistry("mouse", hooks.Mouse, queue, a.logger)
	keyboard := input.NewRegistry("keyboard", hooks.Keyboard, queue, a.logger)

	monitor := input.NewActivityMonitor(mouse, keyboard, queue, a.cfg.Input.InactivityTimeout, a.logger)
	defer monitor.Close()
	monitor.OnChange(func(active bool) {
		a.logger.Debug("user activity changed", "active", active)
		hooks.SetActive(active)
	})

	return hooks.Run()
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
