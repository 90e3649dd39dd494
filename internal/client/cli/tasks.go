package cli

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/filex"
	"github.com/dmitrijs2005/taskkeeper/internal/netx"
)

// downloadPresigned is swapped out in tests.
var downloadPresigned = netx.DownloadPresigned

// List prints the user's tasks. args are key=value filters: status,
// priority, search and sort.
func (a *App) List(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	opts, err := parseListArgs(args)
	if err != nil {
		return err
	}

	tasks, err := a.api.ListTasks(ctx, opts)
	if err != nil {
		return a.check(err)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks")
		return nil
	}
	for _, t := range tasks {
		fmt.Fprintln(a.out, t)
	}
	fmt.Fprintf(a.out, "%d task(s)\n", len(tasks))
	return nil
}

func parseListArgs(args []string) (models.ListOptions, error) {
	var o models.ListOptions
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return o, fmt.Errorf("bad filter %q, want key=value", arg)
		}
		switch k {
		case "status":
			o.Status = v
		case "priority":
			o.Priority = v
		case "search", "q":
			o.Search = v
		case "sort":
			o.Sort = v
		default:
			return o, fmt.Errorf("unknown filter %q (status, priority, search, sort)", k)
		}
	}
	return o, nil
}

// Add prompts for a new task's fields. Blank answers take server defaults.
func (a *App) Add(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	var in models.TaskInput
	var err error
	if in.Title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if in.Description, err = GetMultiline(a.reader, "Description", a.out); err != nil {
		return err
	}
	if in.Priority, err = getSimpleText(a.reader, "Priority (low/medium/high, blank for medium)", a.out); err != nil {
		return err
	}
	if in.DueDate, err = getSimpleText(a.reader, "Due date (YYYY-MM-DD, blank for none)", a.out); err != nil {
		return err
	}
	tags, err := getSimpleText(a.reader, "Tags (comma separated)", a.out)
	if err != nil {
		return err
	}
	in.Tags = splitTags(tags)

	t, err := a.api.CreateTask(ctx, in)
	if err != nil {
		return a.check(err)
	}
	fmt.Fprintln(a.out, "Created", t.ID)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := a.taskID("show", args)
	if err != nil {
		return err
	}
	t, err := a.api.GetTask(ctx, id)
	if err != nil {
		return a.check(err)
	}
	fmt.Fprintln(a.out, t.Details())
	return nil
}

// Edit walks through the task's fields. A blank answer keeps the current
// value; "-" clears the due date or tags.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := a.taskID("edit", args)
	if err != nil {
		return err
	}
	cur, err := a.api.GetTask(ctx, id)
	if err != nil {
		return a.check(err)
	}

	var u models.TaskUpdate
	ask := func(label, current string) (string, error) {
		return getSimpleText(a.reader, fmt.Sprintf("%s [%s]", label, current), a.out)
	}

	for _, f := range []struct {
		label   string
		current string
		dst     **string
	}{
		{"Title", cur.Title, &u.Title},
		{"Description", cur.Description, &u.Description},
		{"Status (pending/in-progress/completed)", cur.Status, &u.Status},
		{"Priority (low/medium/high)", cur.Priority, &u.Priority},
	} {
		v, err := ask(f.label, f.current)
		if err != nil {
			return err
		}
		if v != "" {
			*f.dst = &v
		}
	}

	due := "-"
	if cur.DueDate != nil {
		due = cur.DueDate.Format(time.DateOnly)
	}
	v, err := ask("Due date (YYYY-MM-DD, - to clear)", due)
	if err != nil {
		return err
	}
	switch v {
	case "":
	case "-":
		none := ""
		u.DueDate = &none
	default:
		u.DueDate = &v
	}

	v, err = ask("Tags (comma separated, - to clear)", strings.Join(cur.Tags, ", "))
	if err != nil {
		return err
	}
	switch v {
	case "":
	case "-":
		empty := []string{}
		u.Tags = &empty
	default:
		tags := splitTags(v)
		u.Tags = &tags
	}

	if u == (models.TaskUpdate{}) {
		fmt.Fprintln(a.out, "Nothing changed")
		return nil
	}

	t, err := a.api.UpdateTask(ctx, id, u)
	if err != nil {
		return a.check(err)
	}
	fmt.Fprintln(a.out, "Updated", t.ID)
	return nil
}

// Done marks a task completed.
func (a *App) Done(ctx context.Context, args []string) error {
	id, err := a.taskID("done", args)
	if err != nil {
		return err
	}
	status := "completed"
	t, err := a.api.UpdateTask(ctx, id, models.TaskUpdate{Status: &status})
	if err != nil {
		return a.check(err)
	}
	fmt.Fprintln(a.out, "Completed:", t.Title)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := a.taskID("delete", args)
	if err != nil {
		return err
	}
	if err := a.api.DeleteTask(ctx, id); err != nil {
		return a.check(err)
	}
	fmt.Fprintln(a.out, "Deleted", id)
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	s, err := a.api.Stats(ctx)
	if err != nil {
		return a.check(err)
	}
	fmt.Fprintf(a.out, "Total: %d  Pending: %d  In progress: %d  Completed: %d  High priority: %d\n",
		s.Total, s.Pending, s.InProgress, s.Completed, s.HighPriority)
	return nil
}

// Export asks the server for a JSON export and prints its link. With a
// directory argument the file is also downloaded there.
func (a *App) Export(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	if len(args) > 1 {
		return errors.New("usage: export [dir]")
	}
	l, err := a.api.Export(ctx)
	if err != nil {
		return a.check(err)
	}
	fmt.Fprintf(a.out, "Export ready (valid until %s):\n%s\n", l.ExpiresAt.Local().Format(time.DateTime), l.URL)
	if len(args) == 0 {
		return nil
	}

	dir, err := filex.EnsureDir(args[0])
	if err != nil {
		return err
	}
	data, err := downloadPresigned(ctx, nil, l.URL)
	if err != nil {
		return err
	}
	dst := filepath.Join(dir, path.Base(l.Key))
	if err := filex.WriteFile(dst, data); err != nil {
		return fmt.Errorf("save export: %w", err)
	}
	fmt.Fprintln(a.out, "Saved to", dst)
	return nil
}

func (a *App) taskID(cmd string, args []string) (string, error) {
	if !a.isLoggedIn() {
		return "", errNotLoggedIn
	}
	if len(args) != 1 || args[0] == "" {
		return "", errors.New("usage: " + cmd + " <id>")
	}
	return args[0], nil
}
