// Package main walks a complete scripted session: building a small
// internal system, engaging a protector through the six steps, and
// unburdening the exile it guards.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
	"github.com/partswork/engine/internal/session"
	"github.com/partswork/engine/internal/unburdening"
	"github.com/partswork/engine/internal/workflow"
)

func main() {
	log.SetFlags(0)
	ctx := context.Background()

	sess, err := session.New(ctx)
	if err != nil {
		log.Fatalf("create session: %v", err)
	}

	critic := part.NewManager("", "the inner critic", 9, "prevent humiliation by attacking first")
	critic.Triggers = []string{"making mistakes in public"}
	critic.Strategies = []string{"preemptive self-criticism", "perfectionism"}
	criticID := must(sess.AddPart(ctx, critic))

	numbing := part.NewFirefighter("", "the numbing part", 14, "extinguish pain before it overwhelms")
	numbing.Extinguishing = []string{"doomscrolling", "overeating"}
	numbingID := must(sess.AddPart(ctx, numbing))

	lonely := part.NewExile("", "the lonely seven-year-old", 7, "hold the memory of being left out")
	lonely.Burden = &part.Burden{
		Kind:         part.BurdenPersonal,
		Origin:       "excluded from the group at school",
		Content:      "I am fundamentally unwantable",
		StoredCharge: 0.8,
	}
	lonelyID := must(sess.AddPart(ctx, lonely))

	check(sess.AddRelationship(ctx, criticID, lonelyID, graph.EdgeProtects))
	check(sess.AddRelationship(ctx, numbingID, lonelyID, graph.EdgeProtects))

	fmt.Printf("System built: %d parts, energy %.2f, self-led=%v\n\n",
		len(sess.Parts()), sess.Energy(), sess.IsSelfLed())

	// The critic blends in; the gate must block engagement.
	check(sess.Blend(ctx, criticID, 0.6, nil))
	fmt.Printf("Critic blends at 60%%: energy drops to %.2f\n", sess.Energy())

	find, _ := sess.Find(ctx, workflow.Trailhead{
		Modality:    workflow.ModalitySomatic,
		Intensity:   0.7,
		Description: "tightness in the chest before the meeting",
		PartID:      criticID,
	})
	fmt.Printf("FIND -> next %s\n", find.NextStep)

	step(sess.Focus(ctx, criticID))
	step(sess.FleshOut(ctx, criticID))

	blocked, _ := sess.FeelToward(ctx, criticID)
	fmt.Printf("FEEL_TOWARD blocked, unblend required: %s\n", blocked.UnblendRequired)

	check(sess.Unblend(ctx, criticID))
	fmt.Printf("Critic unblends: energy back to %.2f\n", sess.Energy())

	step(sess.FeelToward(ctx, criticID))
	step(sess.Befriend(ctx, criticID))
	step(sess.Fear(ctx, criticID))

	p, _ := sess.GetPart(criticID)
	fmt.Printf("Critic trust after befriending: %.2f\n\n", p.Meta().TrustLevel)

	// With the protector's permission, heal the exile.
	pipeline := []struct {
		name string
		call func() (unburdening.Result, error)
	}{
		{"WITNESS", func() (unburdening.Result, error) { return sess.Witness(ctx, lonelyID) }},
		{"RETRIEVE", func() (unburdening.Result, error) { return sess.Retrieve(ctx, lonelyID) }},
		{"REPARENT", func() (unburdening.Result, error) { return sess.Reparent(ctx, lonelyID, "someone who stays") }},
		{"PURGE", func() (unburdening.Result, error) { return sess.Purge(ctx, lonelyID, unburdening.ElementWater) }},
		{"INVITE", func() (unburdening.Result, error) {
			return sess.Invite(ctx, lonelyID, []string{"playfulness", "belonging"})
		}},
	}
	for _, stage := range pipeline {
		result, err := stage.call()
		if err != nil {
			log.Fatalf("%s: %v", stage.name, err)
		}
		fmt.Printf("%s -> %s\n", stage.name, result.Notes)
	}

	exile, _ := sess.GetPart(lonelyID)
	fmt.Printf("\nExile state: %s, activation %.2f\n", exile.(*part.Exile).State, exile.(*part.Exile).Activation)
	fmt.Printf("Preservation ratio: %.2f\n", sess.PreservationRatio())
	fmt.Printf("Session log: %d events\n", len(sess.Log()))

	talk, err := sess.SpeakAs(ctx, lonelyID, "How do you feel now?")
	if err != nil {
		log.Fatalf("dialogue: %v", err)
	}
	fmt.Printf("Exile says: %s\n", talk)

	vector := sess.Vector()
	fmt.Printf("Final vector: compassion=%.2f curiosity=%.2f calm=%.2f\n",
		vector[selfstate.Compassion], vector[selfstate.Curiosity], vector[selfstate.Calm])
}

func must(id string, err error) string {
	if err != nil {
		log.Fatalf("add part: %v", err)
	}
	return id
}

func check(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func step(result workflow.Result, err error) {
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s -> next %s\n", result.Step, result.NextStep)
}
