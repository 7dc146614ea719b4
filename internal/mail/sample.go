package mail

import (
	"context"
	"time"
)

// SampleSource serves a fixed inbox of health-insurance customer requests.
// It backs the TUI when no IMAP account is configured.
type SampleSource struct{}

// List returns the sample inbox, newest first.
func (SampleSource) List(ctx context.Context) ([]Mail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Mail, len(sampleMails))
	for i, m := range sampleMails {
		m.Labels = append([]string(nil), m.Labels...)
		m.Attachments = append([]Attachment(nil), m.Attachments...)
		if m.Preview == "" {
			m.Preview = MakePreview(m.Body)
		}
		out[i] = m
	}
	SortNewest(out)
	return out, nil
}

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.Local)
}

var sampleMails = []Mail{
	{
		ID:          "1",
		Subject:     "Kostenübernahme für Physiotherapie",
		Sender:      "Anna Müller",
		SenderEmail: "anna.mueller@email.de",
		Preview:     "Sehr geehrte Damen und Herren, ich benötige eine Kostenübernahme für eine Physiotherapie nach meinem Bandscheibenvorfall...",
		Body: `Sehr geehrte Damen und Herren,

nach meinem Bandscheibenvorfall im Dezember 2023 hat mein Orthopäde mir eine Physiotherapie verordnet.

Details zu meiner Anfrage:
- Diagnose: Bandscheibenvorfall L4/L5
- Verordnete Behandlungen: 20 Einheiten Physiotherapie
- Behandlungszeitraum: 6 Wochen
- Praxis: Physiotherapie Schmidt, München

Ich bitte um schnellstmögliche Bearbeitung, da die Schmerzen sehr stark sind.

Mit freundlichen Grüßen,
Anna Müller
Versichertennummer: 12345678`,
		Date:        at(2024, time.January, 15, 9, 30),
		Starred:     true,
		Important:   true,
		Labels:      []string{"Kostenübernahme", "Physiotherapie"},
		Attachments: []Attachment{{Name: "arztbericht-orthopaedie.pdf", Size: "1.8 MB", Type: "PDF"}},
	},
	{
		ID:          "2",
		Subject:     "Widerspruch gegen Ablehnungsbescheid",
		Sender:      "Klaus Weber",
		SenderEmail: "k.weber@email.de",
		Preview:     "Hiermit lege ich Widerspruch gegen Ihren Ablehnungsbescheid vom 10.01.2024 bezüglich meiner Reha-Maßnahme ein...",
		Body: `Sehr geehrte Damen und Herren,

hiermit lege ich förmlich Widerspruch gegen Ihren Ablehnungsbescheid vom 10.01.2024 ein.

Begründung:
- Aktenzeichen: RH-2024-0156
- Abgelehnte Leistung: Rehabilitationsmaßnahme nach Herzinfarkt
- Medizinische Notwendigkeit ist gegeben
- Facharzt bestätigt dringende Empfehlung

Ich bitte um erneute Prüfung meines Falls und stelle alle erforderlichen Unterlagen zur Verfügung.

Mit freundlichen Grüßen,
Klaus Weber
Versichertennummer: 87654321`,
		Date:      at(2024, time.January, 14, 14, 22),
		Read:      true,
		Important: true,
		Labels:    []string{"Widerspruch", "Rehabilitation"},
	},
	{
		ID:          "3",
		Subject:     "Versichertenkarte verloren - Ersatzkarte beantragen",
		Sender:      "Maria Schmidt",
		SenderEmail: "maria.schmidt@email.de",
		Preview:     "Guten Tag, ich habe meine Versichertenkarte verloren und benötige dringend eine Ersatzkarte...",
		Body: `Guten Tag,

ich habe leider meine Versichertenkarte verloren und benötige dringend eine Ersatzkarte.

Details:
- Versichertennummer: 11223344
- Verloren am: 12.01.2024
- Ort: Hamburg Hauptbahnhof
- Dringlichkeit: Habe morgen einen Arzttermin

Können Sie mir bitte eine Ersatzkarte zusenden oder eine vorläufige Bescheinigung ausstellen?

Vielen Dank für Ihre schnelle Hilfe.

Mit freundlichen Grüßen,
Maria Schmidt`,
		Date:      at(2024, time.January, 14, 14, 15),
		Important: true,
		Labels:    []string{"Versichertenkarte", "Verlust"},
	},
	{
		ID:          "4",
		Subject:     "Terminanfrage: Beratung zu Zusatzleistungen",
		Sender:      "Thomas Becker",
		SenderEmail: "thomas.becker@email.de",
		Preview:     "Sehr geehrtes Team, ich würde gerne einen Beratungstermin zu Ihren Zusatzleistungen vereinbaren...",
		Body: `Sehr geehrtes Team,

ich würde gerne einen Beratungstermin zu Ihren Zusatzleistungen vereinbaren.

Interessensgebiete:
- Zahnzusatzversicherung
- Auslandsreisekrankenversicherung
- Naturheilverfahren
- Chefarztbehandlung

Verfügbare Zeiten:
- Montag bis Freitag: 14:00 - 18:00 Uhr
- Bevorzugt: Persönlicher Termin in der Geschäftsstelle

Bitte teilen Sie mir einen passenden Termin mit.

Mit freundlichen Grüßen,
Thomas Becker
Versichertennummer: 55667788`,
		Date:   at(2024, time.January, 14, 12, 0),
		Read:   true,
		Labels: []string{"Beratung", "Zusatzleistungen"},
	},
	{
		ID:          "5",
		Subject:     "Rückerstattung Arztkosten - Privatrechnung",
		Sender:      "Sandra Fischer",
		SenderEmail: "sandra.fischer@email.de",
		Preview:     "Sehr geehrte Damen und Herren, ich bitte um Erstattung der Kosten für eine privatärztliche Behandlung...",
		Body: `Sehr geehrte Damen und Herren,

ich bitte um Erstattung der Kosten für eine privatärztliche Behandlung.

Behandlungsdetails:
- Datum: 08.01.2024
- Arzt: Dr. med. Hartmann, Privatpraxis
- Behandlung: Notfallbehandlung am Wochenende
- Rechnungsbetrag: 180,00 €
- Grund: Kein Kassenarzt verfügbar

Die Originalrechnung ist beigefügt. Ich bitte um zeitnahe Bearbeitung.

Mit freundlichen Grüßen,
Sandra Fischer
Versichertennummer: 99887766`,
		Date:        at(2024, time.January, 13, 16, 45),
		Read:        true,
		Important:   true,
		Labels:      []string{"Erstattung", "Privatrechnung"},
		Attachments: []Attachment{{Name: "privatrechnung-dr-hartmann.pdf", Size: "0.8 MB", Type: "PDF"}},
	},
	{
		ID:          "6",
		Subject:     "Änderung der Bankverbindung",
		Sender:      "Robert Schneider",
		SenderEmail: "robert.schneider@email.de",
		Preview:     "Hiermit teile ich Ihnen meine neue Bankverbindung für Erstattungen mit...",
		Body: `Sehr geehrte Damen und Herren,

hiermit teile ich Ihnen meine neue Bankverbindung mit:

Neue Bankdaten:
- Kontoinhaber: Robert Schneider
- IBAN: DE89 1234 5678 9012 3456 78
- BIC: DEUTDEFF123
- Bank: Deutsche Bank AG

Alte Bankverbindung:
- IBAN: DE12 9876 5432 1098 7654 32

Bitte aktualisieren Sie meine Daten für zukünftige Erstattungen.

Mit freundlichen Grüßen,
Robert Schneider
Versichertennummer: 44556677`,
		Date:   at(2024, time.January, 13, 8, 0),
		Labels: []string{"Bankdaten", "Änderung"},
	},
	{
		ID:          "7",
		Subject:     "Schwangerschaft - Anmeldung und Leistungen",
		Sender:      "Julia Hoffmann",
		SenderEmail: "julia.hoffmann@email.de",
		Preview:     "Sehr geehrtes Team, ich bin schwanger und möchte mich über die Leistungen der Krankenkasse informieren...",
		Body: `Sehr geehrtes Team,

ich bin schwanger (8. Woche) und möchte mich über die Leistungen informieren.

Meine Fragen:
1. Welche Vorsorgeuntersuchungen werden übernommen?
2. Kostenübernahme für Hebamme
3. Mutterschaftsgeld - Antragsstellung
4. Zusätzliche Leistungen für Schwangere

Erwarteter Geburtstermin: September 2024

Ich freue mich auf Ihre Informationen und einen Beratungstermin.

Mit freundlichen Grüßen,
Julia Hoffmann
Versichertennummer: 33445566`,
		Date:      at(2024, time.January, 12, 11, 30),
		Read:      true,
		Starred:   true,
		Important: true,
		Labels:    []string{"Schwangerschaft", "Beratung"},
	},
	{
		ID:          "8",
		Subject:     "Beschwerde über Wartezeit beim Facharzt",
		Sender:      "Heinrich Müller",
		SenderEmail: "heinrich.mueller@email.de",
		Preview:     "Sehr geehrte Damen und Herren, ich beschwere mich über die unzumutbare Wartezeit für einen Facharzttermin...",
		Body: `Sehr geehrte Damen und Herren,

ich beschwere mich über die unzumutbare Wartezeit für einen Facharzttermin.

Situation:
- Überweisung zum Kardiologen seit 15.12.2023
- Nächster freier Termin: Mai 2024
- Wartezeit: 5 Monate
- Beschwerden: Herzrhythmusstörungen

Diese Wartezeit ist bei meinen Beschwerden nicht akzeptabel. Ich bitte um Ihre Unterstützung bei der Terminvermittlung.

Mit freundlichen Grüßen,
Heinrich Müller
Versichertennummer: 66778899`,
		Date:      at(2024, time.January, 12, 9, 15),
		Read:      true,
		Important: true,
		Labels:    []string{"Beschwerde", "Terminvermittlung"},
	},
}
