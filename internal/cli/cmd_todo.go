package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/shihongDev/simple-todo-note/internal/storage"
	"github.com/spf13/cobra"
)

// addFormFn collects the add fields interactively. Tests replace it.
var addFormFn = runAddForm

type addFields struct {
	Title   string
	Recur   string
	Note    string
	DueDate string
}

func newListCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List todos in display order",
		Example: "  todonote list\n" +
			"  todonote --json list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("list does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				todos, err := env.services.Todos.List(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					if todos == nil {
						todos = []storage.Todo{}
					}
					return printJSON(deps.out, todos)
				}
				if len(todos) == 0 {
					if deps.globals.Quiet {
						return nil
					}
					_, err := fmt.Fprintln(deps.out, "no todos")
					return err
				}
				for _, todo := range todos {
					if deps.globals.Quiet {
						if _, err := fmt.Fprintln(deps.out, todo.ID); err != nil {
							return err
						}
						continue
					}
					if err := printTodoLine(deps.out, todo); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newAddCommand(deps commandDeps) *cobra.Command {
	var (
		recur       string
		note        string
		due         string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo at the top of the list",
		Example: "  todonote add \"buy milk\"\n" +
			"  todonote add \"pay rent\" --recur bi-weekly --due 2026-11-01\n" +
			"  todonote add --interactive",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := addFields{
				Title:   strings.Join(args, " "),
				Recur:   recur,
				Note:    note,
				DueDate: due,
			}
			if interactive {
				if !stdinIsTTYFn() {
					return usageErrorf("add --interactive requires a terminal")
				}
				var err error
				fields, err = addFormFn(cmd.InOrStdin(), deps.out, fields)
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				if err != nil {
					return mapCommandError(fmt.Errorf("add form: %w", err))
				}
			}
			if strings.TrimSpace(fields.Title) == "" {
				return usageErrorf("add requires a title")
			}

			req := app.CreateTodoRequest{Title: fields.Title}
			if cmd.Flags().Changed("recur") || interactive {
				req.RecurrenceTag = &fields.Recur
			}
			if cmd.Flags().Changed("note") || interactive {
				req.Note = &fields.Note
			}
			if cmd.Flags().Changed("due") || interactive {
				req.DueDate = &fields.DueDate
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				todo, err := env.services.Todos.Create(ctx, req)
				if err != nil {
					return err
				}
				return printTodoResult(deps, "added", todo)
			})
		},
	}
	cmd.Flags().StringVar(&recur, "recur", storage.RecurrenceNone, "Recurrence tag (none, daily, bi-weekly)")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	cmd.Flags().StringVar(&due, "due", "", "Due date, stored as given")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Fill the fields in a form")
	return cmd
}

func runAddForm(in io.Reader, out io.Writer, fields addFields) (addFields, error) {
	if fields.Recur == "" {
		fields.Recur = storage.RecurrenceNone
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&fields.Title).
				Validate(func(value string) error {
					if strings.TrimSpace(value) == "" {
						return errors.New("title cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Repeats").
				Options(huh.NewOptions(storage.RecurrenceNone, storage.RecurrenceDaily, storage.RecurrenceBiWeekly)...).
				Value(&fields.Recur),
			huh.NewInput().
				Title("Note").
				Value(&fields.Note),
			huh.NewInput().
				Title("Due date").
				Placeholder("YYYY-MM-DD").
				Value(&fields.DueDate),
		),
	).WithInput(in).WithOutput(out)
	if err := form.Run(); err != nil {
		return addFields{}, err
	}
	return fields, nil
}

func newEditCommand(deps commandDeps) *cobra.Command {
	var (
		title     string
		recur     string
		note      string
		due       string
		clearDue  bool
		completed bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a todo",
		Long:  "Only the fields named by flags change. Use --clear-due to remove a due date.",
		Example: "  todonote edit 3f2a... --title \"buy oat milk\"\n" +
			"  todonote edit 3f2a... --clear-due",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("edit requires exactly one todo id")
			}
			flags := cmd.Flags()
			if flags.Changed("due") && clearDue {
				return usageErrorf("--due and --clear-due cannot be combined")
			}

			req := app.UpdateTodoRequest{ID: args[0]}
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("recur") {
				req.RecurrenceTag = &recur
			}
			if flags.Changed("note") {
				req.Note = &note
			}
			if flags.Changed("completed") {
				req.Completed = &completed
			}
			switch {
			case clearDue:
				req.DueDate = app.ClearDueDate()
			case flags.Changed("due"):
				req.DueDate = app.SetDueDate(due)
			default:
				req.DueDate = app.DueDateUnchanged()
			}
			if req.Title == nil && req.RecurrenceTag == nil && req.Note == nil &&
				req.Completed == nil && req.DueDate.IsUnchanged() {
				return usageErrorf("edit requires at least one field flag")
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				todo, err := env.services.Todos.Update(ctx, req)
				if err != nil {
					return err
				}
				return printTodoResult(deps, "updated", todo)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&recur, "recur", "", "Recurrence tag (none, daily, bi-weekly)")
	cmd.Flags().StringVar(&note, "note", "", "Replace the note")
	cmd.Flags().StringVar(&due, "due", "", "Set the due date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.Flags().BoolVar(&completed, "completed", false, "Set completion state")
	return cmd
}

func newToggleCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "toggle <id>",
		Short:   "Flip a todo between open and done",
		Example: "  todonote toggle 3f2a...",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("toggle requires exactly one todo id")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				todo, err := env.services.Todos.Toggle(ctx, args[0])
				if err != nil {
					return err
				}
				return printTodoResult(deps, boolToState(todo.Completed, "completed", "reopened"), todo)
			})
		},
	}
}

func newRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo",
		Example: "  todonote rm 3f2a...",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("rm requires exactly one todo id")
			}
			id := args[0]
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				if err := env.services.Todos.Delete(ctx, id); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"id": id, "deleted": true})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err := fmt.Fprintf(deps.out, "deleted %s\n", id)
				return err
			})
		},
	}
}

func newReorderCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Rewrite the display order",
		Long: "Pass every todo id in the desired order. Ids left out keep their old\n" +
			"position key and may interleave with the new order.",
		Example: "  todonote reorder $(todonote --quiet list | tac)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("reorder requires at least one todo id")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				if err := env.services.Todos.Reorder(ctx, args); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"ids": args})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err := fmt.Fprintf(deps.out, "reordered %d todos\n", len(args))
				return err
			})
		},
	}
}

func printTodoResult(deps commandDeps, verb string, todo *storage.Todo) error {
	if deps.globals.JSON {
		return printJSON(deps.out, todo)
	}
	if deps.globals.Quiet {
		_, err := fmt.Fprintln(deps.out, todo.ID)
		return err
	}
	if _, err := fmt.Fprintf(deps.out, "%s ", verb); err != nil {
		return err
	}
	return printTodoLine(deps.out, *todo)
}

func printTodoLine(w io.Writer, todo storage.Todo) error {
	line := fmt.Sprintf("[%s] %s  %s", boolToState(todo.Completed, "x", " "), todo.ID, todo.Title)
	if todo.RecurrenceTag != storage.RecurrenceNone {
		line += "  (" + todo.RecurrenceTag + ")"
	}
	if todo.DueDate != nil {
		line += "  due " + *todo.DueDate
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
