package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/yungbote/classroom-backend/internal/app"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/provisioning"
	"github.com/yungbote/classroom-backend/internal/services"
)

func main() {
	cmd := &cli.Command{
		Name:                  "provisionctl",
		Usage:                 "Queue, run and inspect repository provisioning",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			enqueueCommand(),
			retryCommand(),
			runCommand(),
			statusCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func collaboratorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "invitation", Usage: "invitation id", Required: true},
		&cli.StringFlag{Name: "user", Usage: "collaborating user id"},
		&cli.StringFlag{Name: "group", Usage: "collaborating group id"},
	}
}

func enqueueCommand() *cli.Command {
	return &cli.Command{
		Name:  "enqueue",
		Usage: "Queue a provisioning job for a collaborator",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "assignment", Usage: "assignment id", Required: true},
		}, collaboratorFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			assignmentID, err := parseID(c, "assignment")
			if err != nil {
				return err
			}
			invitationID, userID, groupID, err := parseCollaborator(c)
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				out, err := a.Services.JobService.EnqueueProvision(dbctx.Context{Ctx: ctx}, services.ProvisionTarget{
					AssignmentID: assignmentID,
					InvitationID: invitationID,
					UserID:       userID,
					GroupID:      groupID,
				})
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"job_id":           out.Job.ID,
					"invite_status_id": out.InviteStatus.ID,
					"invite_status":    out.InviteStatus.Status,
					"attempt_key":      out.AttemptKey,
					"deduplicated":     out.Deduplicated,
				})
			})
		},
	}
}

func retryCommand() *cli.Command {
	return &cli.Command{
		Name:  "retry",
		Usage: "Reopen an errored attempt and queue it again",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "invite-status", Usage: "invite status id", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := parseID(c, "invite-status")
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				out, err := a.Services.JobService.RetryProvision(dbctx.Context{Ctx: ctx}, id)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"job_id":        out.Job.ID,
					"invite_status": out.InviteStatus.Status,
					"attempt_key":   out.AttemptKey,
				})
			})
		},
	}
}

// run provisions inline, bypassing the job queue. Useful for reproducing a
// failure against a single invite status.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Provision one invite status synchronously",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "invite-status", Usage: "invite status id", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := parseID(c, "invite-status")
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				req, err := a.Services.Resolver.Resolve(ctx, id)
				if err != nil {
					return err
				}
				outcome, err := a.Services.Provisioning.Provision(ctx, req)
				if err != nil {
					return err
				}
				return printOutcome(outcome)
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show a job or a collaborator's progress state",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "job", Usage: "job id"},
			&cli.StringFlag{Name: "invitation", Usage: "invitation id"},
			&cli.StringFlag{Name: "user", Usage: "collaborating user id"},
			&cli.StringFlag{Name: "group", Usage: "collaborating group id"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			dbc := dbctx.Context{Ctx: ctx}
			if c.String("job") != "" {
				jobID, err := parseID(c, "job")
				if err != nil {
					return err
				}
				return withApp(func(a *app.App) error {
					job, err := a.Services.JobService.GetJob(dbc, jobID)
					if err != nil {
						return err
					}
					return printJSON(job)
				})
			}
			invitationID, userID, groupID, err := parseCollaborator(c)
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				state, err := a.Services.JobService.ProgressState(dbc, invitationID, userID, groupID)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"status": state})
			})
		},
	}
}

func withApp(fn func(a *app.App) error) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func parseID(c *cli.Command, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.String(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}

func parseCollaborator(c *cli.Command) (uuid.UUID, *uuid.UUID, *uuid.UUID, error) {
	invitationID, err := parseID(c, "invitation")
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	var userID, groupID *uuid.UUID
	if c.String("user") != "" {
		id, err := parseID(c, "user")
		if err != nil {
			return uuid.Nil, nil, nil, err
		}
		userID = &id
	}
	if c.String("group") != "" {
		id, err := parseID(c, "group")
		if err != nil {
			return uuid.Nil, nil, nil, err
		}
		groupID = &id
	}
	if (userID == nil) == (groupID == nil) {
		return uuid.Nil, nil, nil, fmt.Errorf("exactly one of --user or --group is required")
	}
	return invitationID, userID, groupID, nil
}

func printOutcome(o *provisioning.Outcome) error {
	out := map[string]any{"status": o.Status}
	if o.RepoLink != nil {
		out["repo_link_id"] = o.RepoLink.ID
		out["github_repo_id"] = o.RepoLink.GitHubRepoID
		out["github_full_name"] = o.RepoLink.GitHubFullName
	}
	if o.Err != nil {
		out["error"] = o.Err.UserMessage()
		out["kind"] = provisioning.KindOf(o.Err)
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
