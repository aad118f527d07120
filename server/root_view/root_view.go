package root_view

import (
	"context"
	"html/template"
	"time"

	"localizer/localizer"
	"localizer/server/cell_views"
	"localizer/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// batchWindow is how long updates for the same element are coalesced before sending.
const batchWindow = time.Millisecond * 20

// RootView is the index page: it hosts the views and the websocket bootstrap, and merges
// the views' element updates into one stream.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView builds the views over frames for a rows x cols grid.
func NewRootView(
	ctx context.Context,
	rows, cols int,
	frames <-chan localizer.Frame,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[localizer.Frame, cell_views.Board]().
		WithContext(ctx).
		WithModel(frames, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewBeliefGrid(done, boards)
		}).
		WithView(func(
			done <-chan struct{},
			boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewBeliefSurface(done, boards, rows, cols)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the merged element updates of all views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse adds the page template and every view's template to parent and returns the page's
// name. The arithmetic funcs defined here are shared by the views.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		var tname string
		if tname, err = vc.Parse(rt); err != nil {
			return
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The websocket is opened against whatever host served the page.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<title>Localizer</title>
			<script>
				const ws = new WebSocket("ws://" + window.location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// Apply each pushed element update by id.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body style="display:flex; flex-wrap:wrap; font-family:monospace;">
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn merges the views' update channels and batches the result.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchWindow)
}

// batchify collects updates for up to rate before sending them as one batch. A later update
// for an ele-id replaces an earlier one within the same batch. Whatever is pending when
// source closes is flushed.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		order := []string{}
		send := func() bool {
			batch := make([]fastview.EleUpdate, 0, len(order))
			for _, id := range order {
				batch = append(batch, data[id])
			}
			select {
			case output <- batch:
				data = map[string]fastview.EleUpdate{}
				order = order[:0]
				return true
			case <-done:
				return false
			}
		}

		last := time.Now()
		for updates := range channerics.OrDone(done, source) {
			for _, update := range updates {
				if _, seen := data[update.EleId]; !seen {
					order = append(order, update.EleId)
				}
				data[update.EleId] = update
			}

			if time.Since(last) > rate && len(data) > 0 {
				if !send() {
					return
				}
				last = time.Now()
			}
		}
		if len(data) > 0 {
			send()
		}
	}()

	return output
}
