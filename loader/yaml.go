package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/parley/types"
)

// yamlFile is the on-disk YAML content format. It mirrors the Lua DSL.
type yamlFile struct {
	Game      *yamlGame      `yaml:"game"`
	NPCs      []yamlNPC      `yaml:"npcs"`
	Dialogues []yamlDialogue `yaml:"dialogues"`
}

type yamlGame struct {
	Title   string `yaml:"title"`
	Author  string `yaml:"author"`
	Version string `yaml:"version"`
	Intro   string `yaml:"intro"`
}

type yamlNPC struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Dialogues []string `yaml:"dialogues"`
}

type yamlDialogue struct {
	ID        string          `yaml:"id"`
	Requires  []yamlCondition `yaml:"requires"`
	Completes []string        `yaml:"completes"`
	Lines     []yamlLine      `yaml:"lines"`
}

type yamlLine struct {
	ID      string       `yaml:"id"`
	Speaker string       `yaml:"speaker"`
	Text    string       `yaml:"text"`
	Choices []yamlChoice `yaml:"choices"`
}

type yamlChoice struct {
	Text         string `yaml:"text"`
	Flag         string `yaml:"flag"`
	Relationship int    `yaml:"relationship"`
	NPC          string `yaml:"npc"`
	Next         string `yaml:"next"`
}

type yamlCondition struct {
	Kind      string         `yaml:"kind"`
	Flag      string         `yaml:"flag"`
	Value     bool           `yaml:"value"`
	Item      string         `yaml:"item"`
	Counter   string         `yaml:"counter"`
	NPC       string         `yaml:"npc"`
	Threshold int            `yaml:"threshold"`
	Inner     *yamlCondition `yaml:"inner"`
}

// loadYAML decodes one YAML content file into p.
func loadYAML(path, name string, p *pack) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	var doc yamlFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", name, err)
	}

	compileYAML(doc, name, p)
	return nil
}

// compileYAML converts a decoded YAML document into drafts.
func compileYAML(doc yamlFile, source string, p *pack) {
	if doc.Game != nil {
		p.games = append(p.games, gameDraft{source: source, def: types.GameDef{
			Title:   doc.Game.Title,
			Author:  doc.Game.Author,
			Version: doc.Game.Version,
			Intro:   doc.Game.Intro,
		}})
	}

	for _, n := range doc.NPCs {
		p.npcs = append(p.npcs, npcDraft{source: source, def: types.NPCDef{
			ID:        n.ID,
			Name:      n.Name,
			Dialogues: n.Dialogues,
		}})
	}

	for _, yd := range doc.Dialogues {
		d := dialogueDraft{
			source:    source,
			id:        yd.ID,
			completes: yd.Completes,
		}
		for _, yc := range yd.Requires {
			d.requires = append(d.requires, yc.condition())
		}
		for _, yl := range yd.Lines {
			line := lineDraft{def: types.LineDef{ID: yl.ID, Speaker: yl.Speaker, Text: yl.Text}}
			for _, ych := range yl.Choices {
				line.choices = append(line.choices, choiceDraft{
					def: types.ChoiceDef{
						Text:              ych.Text,
						Flag:              ych.Flag,
						RelationshipDelta: ych.Relationship,
						RelationshipNPC:   ych.NPC,
					},
					next: ych.Next,
				})
			}
			d.lines = append(d.lines, line)
		}
		p.dialogues = append(p.dialogues, d)
	}
}

func (yc yamlCondition) condition() types.Condition {
	c := types.Condition{
		Kind:      types.ConditionKind(yc.Kind),
		Flag:      yc.Flag,
		Value:     yc.Value,
		Item:      yc.Item,
		Counter:   yc.Counter,
		NPC:       yc.NPC,
		Threshold: yc.Threshold,
	}
	if yc.Inner != nil {
		inner := yc.Inner.condition()
		c.Inner = &inner
	}
	return c
}
