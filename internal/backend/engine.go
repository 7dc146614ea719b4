package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

// Stage durations at speed 1.
const (
	masterDelay  = 1800 * time.Millisecond
	expertDelay  = 2200 * time.Millisecond
	drafterDelay = 1800 * time.Millisecond
)

const shutdownMessage = "Server wurde beendet, Verarbeitung abgebrochen"

// topicKeywords routes a mail to an expert. Earlier entries win when a mail
// matches several topics.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"widerspruch", []string{"widerspruch", "abgelehnt", "ablehnung"}},
	{"krankengeld", []string{"krankengeld", "arbeitsunfähig", "au-bescheinigung"}},
	{"mutterschaft", []string{"mutterschaft", "mutterschutz", "schwanger", "entbindung"}},
	{"familienversicherung", []string{"familienversicherung", "familienversichert", "ehepartner", "mitversicher"}},
	{"pflegeversicherung", []string{"pflegeversicherung", "pflegegrad", "pflegegeld", "pflegedienst"}},
	{"rehabilitation", []string{"rehabilitation", "reha-", "reha ", "anschlussheilbehandlung"}},
	{"zuzahlung", []string{"zuzahlung", "befreiung", "eigenanteil"}},
	{"terminvermittlung", []string{"termin", "facharzt", "wartezeit"}},
	{"kostenuebernahme", []string{"kostenübernahme", "kostenuebernahme", "erstattung", "rechnung", "kosten"}},
}

// chooseTopic is the master agent's routing decision.
func chooseTopic(subject, body string) string {
	text := strings.ToLower(subject + "\n" + body)
	for _, t := range topicKeywords {
		for _, kw := range t.keywords {
			if strings.Contains(text, kw) {
				return t.topic
			}
		}
	}
	return "sonstiges"
}

var topicReplies = map[string]string{
	"zuzahlung":            "Wir haben Ihre Angaben zu den Zuzahlungen geprüft. Sobald Ihre Belastungsgrenze erreicht ist, stellen wir Ihnen gerne eine Befreiungsbescheinigung für das laufende Kalenderjahr aus. Bitte senden Sie uns dazu Ihre gesammelten Quittungen.",
	"familienversicherung": "Die beitragsfreie Familienversicherung ist möglich, sofern das Einkommen der mitzuversichernden Person die gesetzliche Grenze nicht übersteigt. Den Fragebogen zur Familienversicherung haben wir für Sie vorbereitet.",
	"pflegeversicherung":   "Ihren Antrag auf Leistungen der Pflegeversicherung haben wir aufgenommen. Der Medizinische Dienst wird sich zur Begutachtung und Feststellung des Pflegegrades mit Ihnen in Verbindung setzen.",
	"krankengeld":          "Krankengeld zahlen wir ab der siebten Woche der Arbeitsunfähigkeit. Bitte reichen Sie Ihre Arbeitsunfähigkeitsbescheinigungen lückenlos ein, damit wir die Zahlung ohne Verzögerung anweisen können.",
	"kostenuebernahme":     "Wir haben Ihren Antrag auf Kostenübernahme geprüft. Die verordneten Leistungen sind grundsätzlich erstattungsfähig. Bitte reichen Sie uns die ärztliche Verordnung im Original ein, damit wir die Kostenzusage erteilen können.",
	"widerspruch":          "Ihr Widerspruch ist fristgerecht bei uns eingegangen. Wir prüfen den Sachverhalt erneut unter Berücksichtigung der von Ihnen eingereichten Unterlagen und melden uns innerhalb von drei Wochen mit einer Entscheidung.",
	"mutterschaft":         "Herzlichen Glückwunsch! Für die Zahlung des Mutterschaftsgeldes benötigen wir die Bescheinigung über den voraussichtlichen Entbindungstermin. Das Geld wird für die gesamte Schutzfrist gezahlt.",
	"rehabilitation":       "Ihren Antrag auf eine Rehabilitationsmaßnahme haben wir erhalten. Nach Prüfung der medizinischen Unterlagen teilen wir Ihnen die Entscheidung und eine geeignete Einrichtung mit.",
	"terminvermittlung":    "Gerne unterstützt Sie unsere Terminservicestelle bei der Suche nach einem Facharzttermin. Bitte halten Sie Ihre Überweisung mit dem Vermittlungscode bereit.",
	"sonstiges":            "Wir haben Ihre Anfrage erhalten und an die zuständige Fachabteilung weitergeleitet. Sie erhalten in Kürze eine ausführliche Rückmeldung.",
}

func draftReply(sender, subject, topic string) (string, string) {
	greeting := "Sehr geehrte Damen und Herren,"
	if name := strings.TrimSpace(sender); name != "" && !strings.Contains(name, "@") {
		greeting = "Guten Tag " + name + ","
	}
	draftSubject := "Re: " + strings.TrimSpace(subject)
	body := fmt.Sprintf("%s\n\nvielen Dank für Ihre Nachricht zum Thema \"%s\".\n\n%s\n\nBei Rückfragen stehen wir Ihnen gerne zur Verfügung.\n\nMit freundlichen Grüßen\nIhr Kundenservice",
		greeting, strings.TrimSpace(subject), topicReplies[topic])
	return draftSubject, body
}

// engine simulates the multi-agent workflow: master agent, one topic
// expert, then the email drafter.
type engine struct {
	store *Store
	hub   *hub
	speed float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newEngine(store *Store, h *hub, speed float64) *engine {
	if speed <= 0 {
		speed = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &engine{store: store, hub: h, speed: speed, ctx: ctx, cancel: cancel}
}

func (e *engine) delay(d time.Duration) time.Duration {
	return time.Duration(float64(d) / e.speed)
}

// start records a pending run and processes it in the background.
func (e *engine) start(ctx context.Context, sender, subject, body string) (Run, error) {
	if e.ctx.Err() != nil {
		return Run{}, errors.New("engine stopped")
	}
	run := Run{Sender: sender, Subject: subject, Body: body, Status: protocol.RunPending}
	if err := e.store.CreateRun(ctx, &run); err != nil {
		return Run{}, err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.process(run)
	}()
	return run, nil
}

// stop cancels in-flight runs and waits for them to record their failure.
func (e *engine) stop() {
	e.cancel()
	e.wg.Wait()
}

func (e *engine) process(run Run) {
	ctx := e.ctx
	debug.LogKV("backend", "agent run started", "run_id", run.ID, "subject", run.Subject)

	run.Status = protocol.RunRunning
	if err := e.store.UpdateRun(context.Background(), run); err != nil {
		debug.LogKV("backend", "agent run update failed", "run_id", run.ID, "error", err)
		return
	}

	topic := chooseTopic(run.Subject, run.Body)
	expert, _ := agentrun.Lookup(agentrun.ExpertStep(topic))

	stages := []struct {
		typ   agentrun.StepType
		delay time.Duration
		text  string
	}{
		{agentrun.StepMasterAgent, masterDelay, "Anfrage analysiert, weitergeleitet an: " + expert.Name},
		{agentrun.ExpertStep(topic), expertDelay, expert.Name + " hat die relevanten Informationen zusammengestellt."},
		{agentrun.StepEmailDrafter, drafterDelay, "Antwortentwurf erstellt."},
	}
	for _, st := range stages {
		if err := e.stage(ctx, run.ID, string(st.typ), st.text, e.delay(st.delay)); err != nil {
			e.fail(run, err)
			return
		}
	}

	run.Status = protocol.RunCompleted
	run.StatusMessage = "Antwortentwurf bereit"
	run.DraftSubject, run.DraftBody = draftReply(run.Sender, run.Subject, topic)
	if err := e.store.UpdateRun(context.Background(), run); err != nil {
		debug.LogKV("backend", "agent run update failed", "run_id", run.ID, "error", err)
	}
	e.hub.publish(run.ID)
	debug.LogKV("backend", "agent run completed", "run_id", run.ID, "topic", topic)
}

// stage records one running step, waits d, then completes it.
func (e *engine) stage(ctx context.Context, runID, typ, text string, d time.Duration) error {
	step := Step{RunID: runID, Type: typ, Status: protocol.StepRunning}
	if err := e.store.AddStep(context.Background(), &step); err != nil {
		return err
	}
	e.hub.publish(runID)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		_ = e.store.UpdateStep(context.Background(), step.ID, protocol.StepError, "")
		return ctx.Err()
	case <-timer.C:
	}

	if err := e.store.UpdateStep(context.Background(), step.ID, protocol.StepCompleted, text); err != nil {
		return err
	}
	e.hub.publish(runID)
	return nil
}

func (e *engine) fail(run Run, cause error) {
	run.Status = protocol.RunError
	run.StatusMessage = cause.Error()
	if errors.Is(cause, context.Canceled) {
		run.StatusMessage = shutdownMessage
	}
	if err := e.store.UpdateRun(context.Background(), run); err != nil {
		debug.LogKV("backend", "agent run update failed", "run_id", run.ID, "error", err)
	}
	e.hub.publish(run.ID)
	debug.LogKV("backend", "agent run failed", "run_id", run.ID, "error", cause)
}
