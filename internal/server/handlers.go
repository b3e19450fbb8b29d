package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskdeck/internal/output"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
	"taskdeck/internal/view"
)

// taskResponse is a task as rendered to clients. Attachment bytes are served
// separately.
type taskResponse struct {
	task.Task
	Status        task.Status `json:"status"`
	Overdue       bool        `json:"overdue"`
	DeadlineLabel string      `json:"deadlineLabel,omitempty"`
	AttachmentURL string      `json:"attachmentUrl,omitempty"`
}

type viewResponse struct {
	Mode   view.Mode      `json:"mode"`
	Query  string         `json:"query,omitempty"`
	Tasks  []taskResponse `json:"tasks"`
	Counts view.Counts    `json:"counts"`
	Stats  view.Stats     `json:"stats"`
}

type attachmentInput struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type createRequest struct {
	Title       string           `json:"title" form:"title"`
	Description string           `json:"description" form:"description"`
	Date        string           `json:"date" form:"date"`
	Time        string           `json:"time" form:"time"`
	Important   bool             `json:"important" form:"important"`
	Completed   bool             `json:"completed" form:"completed"`
	Attachment  *attachmentInput `json:"attachment" form:"-"`
}

type updateRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
	Time        *string          `json:"time"`
	Important   *bool            `json:"important"`
	Completed   *bool            `json:"completed"`
	Attachment  *attachmentInput `json:"attachment"`
}

func (s *Server) render(t task.Task) taskResponse {
	now := s.now()
	r := taskResponse{
		Task:          t,
		Status:        t.Status(),
		Overdue:       t.IsOverdue(now),
		DeadlineLabel: output.DeadlineLabel(t, now, s.loc),
	}
	if t.Attachment != nil {
		a := *t.Attachment
		a.Data = nil
		r.Attachment = &a
		if t.Attachment.Data != nil {
			r.AttachmentURL = "/api/v1/tasks/" + t.ID + "/attachment"
		}
	}
	return r
}

func (s *Server) renderView(res view.Result, all []task.Task) viewResponse {
	out := viewResponse{
		Mode:   res.Mode,
		Query:  res.Query,
		Tasks:  make([]taskResponse, 0, len(res.Tasks)),
		Counts: res.Counts,
		Stats:  view.ComputeStats(all),
	}
	for _, t := range res.Tasks {
		out.Tasks = append(out.Tasks, s.render(t))
	}
	return out
}

// find returns the caller's task with the id in the route.
func (s *Server) find(c *fiber.Ctx) (task.Task, error) {
	id := c.Params("id")
	tasks, err := store.Fetch(c.UserContext(), s.store, owner(c))
	if err != nil {
		return task.Task{}, err
	}
	t, ok := store.Find(tasks, id)
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return t, nil
}

func (s *Server) listTasks(c *fiber.Ctx) error {
	mode, err := view.ParseMode(c.Query("filter"))
	if err != nil {
		return err
	}
	tasks, err := store.Fetch(c.UserContext(), s.store, owner(c))
	if err != nil {
		return err
	}
	return c.JSON(s.renderView(view.Compute(tasks, mode, view.ParseQuery(c.Query("search"))), tasks))
}

func (s *Server) getTask(c *fiber.Ctx) error {
	t, err := s.find(c)
	if err != nil {
		return err
	}
	return c.JSON(s.render(t))
}

func (s *Server) createTask(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return &task.ValidationError{Field: "body", Reason: err.Error()}
	}
	att, err := s.attachment(c, req.Attachment)
	if err != nil {
		return err
	}

	t, err := task.New(owner(c), task.Input{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Important:   req.Important,
		Completed:   req.Completed,
		Attachment:  att,
		Location:    s.loc,
	}, s.now(), s.lc)
	if err != nil {
		return err
	}
	created, err := s.store.Create(c.UserContext(), t)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(s.render(created))
}

func (s *Server) updateTask(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return &task.ValidationError{Field: "body", Reason: err.Error()}
	}
	existing, err := s.find(c)
	if err != nil {
		return err
	}
	att, err := s.attachment(c, req.Attachment)
	if err != nil {
		return err
	}

	updated, patch, err := task.Update(existing, task.Edit{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Important:   req.Important,
		Completed:   req.Completed,
		Attachment:  att,
		Location:    s.loc,
	}, s.now(), s.lc)
	if err != nil {
		return err
	}
	if !patch.IsEmpty() {
		if err := s.store.Update(c.UserContext(), existing.ID, patch); err != nil {
			return err
		}
	}
	return c.JSON(s.render(updated))
}

func (s *Server) completeTask(c *fiber.Ctx) error {
	t, err := s.find(c)
	if err != nil {
		return err
	}
	now := s.now()
	updated, req, err := s.lc.MarkCompleted(t, now)
	if err != nil {
		return err
	}
	if req != nil {
		if err := s.store.Update(c.UserContext(), t.ID, task.StatePatch(updated, now)); err != nil {
			return err
		}
	}
	return c.JSON(s.render(updated))
}

func (s *Server) reopenTask(c *fiber.Ctx) error {
	t, err := s.find(c)
	if err != nil {
		return err
	}
	if t.Status() == task.StatusPending {
		return c.JSON(s.render(t))
	}
	now := s.now()
	updated := s.lc.MarkPending(t)
	updated.UpdatedAt = now
	if err := s.store.Update(c.UserContext(), t.ID, task.StatePatch(updated, now)); err != nil {
		return err
	}
	return c.JSON(s.render(updated))
}

func (s *Server) deleteTask(c *fiber.Ctx) error {
	t, err := s.find(c)
	if err != nil {
		return err
	}
	if err := s.store.Delete(c.UserContext(), t.ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// downloadAttachment serves the attachment bytes. Images are shown inline,
// everything else is offered as a download.
func (s *Server) downloadAttachment(c *fiber.Ctx) error {
	t, err := s.find(c)
	if err != nil {
		return err
	}
	a := t.Attachment
	if a == nil || a.Data == nil {
		return fmt.Errorf("%w: attachment of %s", store.ErrNotFound, t.ID)
	}
	disposition := "attachment"
	if a.IsImage() {
		disposition = "inline"
	}
	c.Set(fiber.HeaderContentType, a.Type)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, a.Name))
	return c.Send(a.Data)
}

func (s *Server) stats(c *fiber.Ctx) error {
	tasks, err := store.Fetch(c.UserContext(), s.store, owner(c))
	if err != nil {
		return err
	}
	return c.JSON(view.ComputeStats(tasks))
}

// attachment reads the upload of a multipart request, or the inline JSON
// attachment otherwise.
func (s *Server) attachment(c *fiber.Ctx, in *attachmentInput) (*task.Attachment, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("attachment")
		if err != nil {
			return nil, nil
		}
		if err := task.CheckAttachmentSize(fh.Size); err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, &task.ValidationError{Field: "attachment", Reason: err.Error()}
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, &task.ValidationError{Field: "attachment", Reason: err.Error()}
		}
		return task.NewAttachment(fh.Filename, data)
	}
	if in == nil {
		return nil, nil
	}
	return task.NewAttachment(in.Name, in.Data)
}
