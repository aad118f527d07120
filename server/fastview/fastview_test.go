package fastview

import (
	"context"
	"html/template"
	"strconv"
	"testing"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	. "github.com/smartystreets/goconvey/convey"
)

// textView sets the text of one element to every view-model it receives.
type textView struct {
	id      string
	updates <-chan []EleUpdate
}

func newTextView(id string) ViewBuilderFunc[string] {
	return func(done <-chan struct{}, vms <-chan string) ViewComponent {
		tv := &textView{id: id}
		tv.updates = channerics.Convert(done, vms, func(vm string) []EleUpdate {
			return []EleUpdate{{EleId: tv.id, Ops: []Op{{Key: TEXT_CONTENT, Value: vm}}}}
		})
		return tv
	}
}

func (tv *textView) Updates() <-chan []EleUpdate {
	return tv.updates
}

func (tv *textView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "` + tv.id + `" }}<p id="` + tv.id + `">{{ . }}</p>{{ end }}`)
	return tv.id, err
}

func receive[T any](ch <-chan T) (item T, ok bool) {
	select {
	case item, ok = <-ch:
	case <-time.After(time.Second):
	}
	return
}

func TestViewBuilder(t *testing.T) {
	Convey("When building views", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		input := make(chan int)

		Convey("Build fails without views or a model", func() {
			_, err := NewViewBuilder[int, string]().WithModel(input, strconv.Itoa).Build()
			So(err, ShouldEqual, ErrNoViews)
			_, err = NewViewBuilder[int, string]().WithView(newTextView("a")).Build()
			So(err, ShouldEqual, ErrNoModel)
			_, err = NewViewBuilder[int, string]().WithModel(nil, strconv.Itoa).WithView(newTextView("a")).Build()
			So(err, ShouldEqual, ErrNoSource)
		})

		Convey("Every view sees every converted item", func() {
			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(input, strconv.Itoa).
				WithView(newTextView("first")).
				WithView(newTextView("second")).
				Build()
			So(err, ShouldBeNil)
			So(len(views), ShouldEqual, 2)

			go func() { input <- 42 }()
			for i, id := range []string{"first", "second"} {
				updates, ok := receive(views[i].Updates())
				So(ok, ShouldBeTrue)
				So(updates, ShouldResemble, []EleUpdate{{EleId: id, Ops: []Op{{Key: TEXT_CONTENT, Value: "42"}}}})
			}
		})
	})
}

func TestHub(t *testing.T) {
	Convey("When publishing through a hub", t, func() {
		done := make(chan struct{})
		defer close(done)
		source := make(chan int)
		hub := NewHub[int]()
		finished := make(chan struct{})
		go func() {
			hub.Run(done, source)
			close(finished)
		}()

		first, cancelFirst := hub.Subscribe()
		second, cancelSecond := hub.Subscribe()
		defer cancelSecond()
		So(hub.Subscribers(), ShouldEqual, 2)

		source <- 1
		item, ok := receive(first)
		So(ok, ShouldBeTrue)
		So(item, ShouldEqual, 1)
		item, ok = receive(second)
		So(ok, ShouldBeTrue)
		So(item, ShouldEqual, 1)

		Convey("A cancelled subscription is closed and removed", func() {
			cancelFirst()
			cancelFirst()
			_, ok := <-first
			So(ok, ShouldBeFalse)
			So(hub.Subscribers(), ShouldEqual, 1)
		})

		Convey("A slow subscriber misses updates instead of blocking", func() {
			source <- 2
			source <- 3
			item, ok := receive(second)
			So(ok, ShouldBeTrue)
			So(item, ShouldEqual, 2)
		})

		Convey("Closing the source closes every subscription", func() {
			close(source)
			_, ok := receive(finished)
			So(ok, ShouldBeFalse)
			_, ok = <-second
			So(ok, ShouldBeFalse)
			late, _ := hub.Subscribe()
			_, ok = <-late
			So(ok, ShouldBeFalse)
		})
	})
}
